package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"emperror.dev/errors"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/host-pulse/config"
	"gitlab.com/tinyland/lab/host-pulse/display/tui"
	"gitlab.com/tinyland/lab/host-pulse/logging"
	"gitlab.com/tinyland/lab/host-pulse/monitor"
)

func newTUICmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !term.IsTerminal(os.Stdout.Fd()) {
				return errors.New("tui needs a terminal; use run or sample instead")
			}

			cfg, loadErr := opts.loadOrDefault()

			// The dashboard owns the screen, so logs only go to the file.
			logger, closer, err := logging.New(cfg.LoggingOptions())
			if err != nil {
				return err
			}
			defer closer.Close()

			if loadErr != nil {
				logger.Warn("configuration unusable, running with defaults", "path", opts.configPath, "error", loadErr)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := newDaemon(cfg, newSampler(cfg, logger), daemonOptions{ConfigPath: opts.configPath}, logger)
			if err != nil {
				return err
			}

			model := tui.NewModel(tui.Options{
				Policy:       d.watcher,
				DiskPath:     cfg.Monitor.DiskPath,
				Refresh:      d.refresh,
				SetThreshold: d.setThreshold,
			})
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			d.watcher.Subscribe(func(*config.Config) { p.Send(tui.ConfigReloadedMsg{}) })
			return runDashboard(ctx, d, p)
		},
	}
}

// runDashboard runs the loop behind p and stops it when the program exits.
func runDashboard(ctx context.Context, d *daemon, p *tea.Program) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopErr := make(chan error, 1)
	go func() {
		if info, ok := d.logSystemInfo(ctx); ok {
			p.Send(tui.SystemInfoMsg(info))
		}
		loopErr <- d.run(ctx, func(u monitor.Update) {
			p.Send(tui.UpdateMsg(u))
		})
		p.Send(tui.LoopDoneMsg{})
	}()

	_, err := p.Run()
	cancel()
	if lerr := <-loopErr; lerr != nil {
		d.logger.Error("monitor loop failed", "error", lerr)
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return errors.Wrap(err, "dashboard")
}
