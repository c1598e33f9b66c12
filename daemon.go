package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"emperror.dev/errors"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/cache"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/host-pulse/config"
	"gitlab.com/tinyland/lab/host-pulse/history"
	"gitlab.com/tinyland/lab/host-pulse/logging"
	"gitlab.com/tinyland/lab/host-pulse/monitor"
	"gitlab.com/tinyland/lab/host-pulse/notify"
	"gitlab.com/tinyland/lab/host-pulse/status"
)

// notifyDrainTimeout bounds how long shutdown waits for queued alerts.
const notifyDrainTimeout = 3 * time.Second

// cacheQueue is the number of updates buffered for the cache writer.
const cacheQueue = 4

// statsWindow is the trailing window summarized in the cached snapshot.
const statsWindow = 5 * time.Minute

// ErrAlreadyRunning is returned when the PID file names a live process.
var ErrAlreadyRunning = errors.Sentinel("daemon already running")

// describer is implemented by samplers that can report static host facts.
type describer interface {
	SystemInfo(ctx context.Context) (sysmetrics.SystemInfo, error)
}

// prober is implemented by samplers that cache capability probes.
type prober interface {
	ResetProbes()
}

// daemon assembles the sampling loop and everything that consumes it.
type daemon struct {
	config   *config.Config
	logger   *slog.Logger
	watcher  *config.Watcher
	sampler  collectors.Sampler
	notifier *notify.Async
	loop     *monitor.Loop
	writer   *cache.Writer
	server   *status.Server
	pidFile  string
}

// daemonOptions selects the optional consumers.
type daemonOptions struct {
	// ConfigPath is watched for changes. Empty disables watching.
	ConfigPath string
	// Cache mirrors every update into the cache directory.
	Cache bool
	// Clock overrides the loop clock in tests.
	Clock monitor.Clock
}

// newDaemon wires sampler into a monitor loop driven by cfg.
func newDaemon(cfg *config.Config, sampler collectors.Sampler, opts daemonOptions, logger *slog.Logger) (*daemon, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d := &daemon{
		config:  cfg,
		logger:  logger,
		sampler: sampler,
		watcher: config.NewWatcher(opts.ConfigPath, cfg, logger),
		pidFile: filepath.Join(cfg.Status.CacheDir, "host-pulse.pid"),
	}

	var sinks notify.Multi
	if cfg.Notify.Desktop {
		sinks = append(sinks, notify.Desktop{})
	}
	if cfg.Notify.Log {
		sinks = append(sinks, notify.Log{Logger: logger})
	}
	d.notifier = notify.NewAsync(sinks, cfg.Notify.QueueSize, logger)

	alerter := alert.New(d.watcher, d.notifier, logger)
	d.loop = monitor.New(sampler, monitor.Options{
		Config:  d.watcher,
		History: history.NewSet(cfg.Monitor.HistoryLength),
		Alerter: alerter,
		Clock:   opts.Clock,
		Logger:  logger,
	})

	if opts.Cache {
		store, err := cache.NewStore(cfg.Status.CacheDir, logger)
		if err != nil {
			return nil, errors.Wrap(err, "create cache store")
		}
		d.writer = cache.NewWriter(store, statsWindow, logger)
	}
	if cfg.Status.Listen != "" {
		d.server = status.NewServer(status.NewEvaluator(d.watcher, 0), logger)
		d.server.UseHistory(d.loop.History())
	}
	return d, nil
}

// writePIDFile writes the current process PID to the PID file.
func (d *daemon) writePIDFile() error {
	dir := filepath.Dir(d.pidFile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create PID file directory")
	}
	pid := os.Getpid()
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return errors.Wrap(err, "write PID file")
	}
	d.logger.Info("wrote PID file", "path", d.pidFile, "pid", pid)
	return nil
}

// removePIDFile removes the PID file on shutdown.
func (d *daemon) removePIDFile() {
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		d.logger.Error("failed to remove PID file", "path", d.pidFile, "error", err)
		return
	}
	d.logger.Debug("removed PID file", "path", d.pidFile)
}

// isRunning reports whether the PID file names a live process. Corrupt and
// stale PID files are removed.
func (d *daemon) isRunning() (bool, int) {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		d.logger.Warn("corrupt PID file, removing", "path", d.pidFile, "content", string(data))
		_ = os.Remove(d.pidFile)
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		_ = os.Remove(d.pidFile)
		return false, 0
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		d.logger.Warn("stale PID file, removing", "path", d.pidFile, "pid", pid)
		_ = os.Remove(d.pidFile)
		return false, 0
	}
	return true, pid
}

// lock claims the PID file, failing if another instance holds it.
func (d *daemon) lock() error {
	if running, pid := d.isRunning(); running {
		return errors.Wrapf(ErrAlreadyRunning, "pid %d", pid)
	}
	return d.writePIDFile()
}

// refresh clears the history and forces capability probes to run again.
func (d *daemon) refresh() {
	d.loop.History().Clear()
	if p, ok := d.sampler.(prober); ok {
		p.ResetProbes()
	}
	d.logger.Info("history cleared on request")
}

// setThreshold changes one alert threshold and writes the configuration
// file when there is one. The watcher sees the write as a reload of the
// same values.
func (d *daemon) setThreshold(m collectors.Metric, value float64) error {
	next := d.watcher.Current().Clone()
	if next.Alerts.Thresholds == nil {
		next.Alerts.Thresholds = make(map[string]float64)
	}
	next.Alerts.Thresholds[string(m)] = value
	if err := d.watcher.Apply(next); err != nil {
		return errors.WithMessagef(err, "set %s threshold", m)
	}
	d.logger.Info("threshold changed", "metric", string(m), "value", value)

	path := d.watcher.Path()
	if path == "" {
		return nil
	}
	return config.SaveConfig(next, path)
}

// logSystemInfo records the startup host description and returns it.
func (d *daemon) logSystemInfo(ctx context.Context) (sysmetrics.SystemInfo, bool) {
	desc, ok := d.sampler.(describer)
	if !ok {
		return sysmetrics.SystemInfo{}, false
	}
	info, err := desc.SystemInfo(ctx)
	if err != nil {
		d.logger.Warn("system info incomplete", "error", err)
	}
	logging.Log(ctx, d.logger, slog.LevelInfo, logging.SystemInfo(info))
	return info, true
}

// run drives the loop until ctx is cancelled or the loop is stopped. Every
// update reaches the status server, the cache writer and each sink, in that
// order. Sinks must not block.
func (d *daemon) run(ctx context.Context, sinks ...func(monitor.Update)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	if d.watcher.Path() != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.watcher.Run(ctx); err != nil {
				d.logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	if d.server != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := d.server.ListenAndServe(ctx, d.config.Status.Listen); err != nil {
				d.logger.Error("status server failed", "addr", d.config.Status.Listen, "error", err)
			}
		}()
	}

	var cacheCh chan monitor.Update
	if d.writer != nil {
		cacheCh = make(chan monitor.Update, cacheQueue)
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.writer.Consume(cacheCh, d.loop.State)
		}()
	}

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		d.dispatch(cacheCh, sinks)
	}()

	err := d.loop.Run(ctx)
	<-dispatched
	cancel()
	wg.Wait()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), notifyDrainTimeout)
	defer drainCancel()
	if cerr := d.notifier.Close(drainCtx); cerr != nil {
		d.logger.Warn("pending notifications dropped", "error", cerr)
	}
	return err
}

// dispatch fans loop updates out until the loop closes its channel.
func (d *daemon) dispatch(cacheCh chan monitor.Update, sinks []func(monitor.Update)) {
	if cacheCh != nil {
		defer close(cacheCh)
	}
	for u := range d.loop.Updates() {
		if d.server != nil {
			d.server.Observe(u)
		}
		if cacheCh != nil {
			select {
			case cacheCh <- u:
			default:
				d.logger.Debug("cache writer behind, skipping update")
			}
		}
		for _, sink := range sinks {
			sink(u)
		}
	}
}
