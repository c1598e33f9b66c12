package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/host-pulse/config"
	"gitlab.com/tinyland/lab/host-pulse/logging"
)

// newSampler builds the host sampler. Tests replace it with a scripted one.
var newSampler = func(cfg *config.Config, logger *slog.Logger) collectors.Sampler {
	return sysmetrics.New(cfg.SamplerConfig(), logger)
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample headlessly, caching state and serving status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loadErr := opts.loadOrDefault()
			if cmd.Flags().Changed("listen") {
				cfg.Status.Listen = listen
			}

			logOpts := cfg.LoggingOptions()
			logOpts.Console = cmd.ErrOrStderr()
			logger, closer, err := logging.New(logOpts)
			if err != nil {
				return err
			}
			defer closer.Close()

			if loadErr != nil {
				logger.Warn("configuration unusable, running with defaults", "path", opts.configPath, "error", loadErr)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runHeadless(ctx, cfg, opts.configPath, newSampler(cfg, logger), logger)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "serve /health, /snapshot, /history and /metrics on this address")
	return cmd
}

// runHeadless claims the PID file and samples until ctx ends.
func runHeadless(ctx context.Context, cfg *config.Config, configPath string, sampler collectors.Sampler, logger *slog.Logger) error {
	d, err := newDaemon(cfg, sampler, daemonOptions{ConfigPath: configPath, Cache: true}, logger)
	if err != nil {
		return err
	}
	if err := d.lock(); err != nil {
		return err
	}
	defer d.removePIDFile()

	d.logSystemInfo(ctx)
	return d.run(ctx)
}
