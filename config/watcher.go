package config

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/fsnotify/fsnotify"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/monitor"
)

// reloadDebounce coalesces the burst of events an editor produces on save.
const reloadDebounce = 100 * time.Millisecond

// ErrEmptyConfig is returned by Reload when the file holds no document,
// usually because it was truncated ahead of a write.
var ErrEmptyConfig = errors.Sentinel("config file is empty")

// Watcher holds the live configuration and reloads it when the file
// changes. A reload that fails to parse or validate is rejected and the
// last known good configuration stays in effect.
type Watcher struct {
	path   string
	logger *slog.Logger

	current atomic.Pointer[Config]

	mu          sync.Mutex
	subscribers []func(*Config)
}

// NewWatcher starts from initial, which should already be validated.
// If logger is nil, a no-op logger is used.
func NewWatcher(path string, initial *Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if initial == nil {
		initial = DefaultConfig()
	}
	w := &Watcher{path: path, logger: logger}
	w.current.Store(initial)
	return w
}

// Path is the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Current returns the configuration in effect. Callers must not modify it.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// AlertPolicy implements alert.ConfigProvider.
func (w *Watcher) AlertPolicy() alert.Policy {
	return w.Current().AlertPolicy()
}

// MonitorSettings implements monitor.ConfigProvider.
func (w *Watcher) MonitorSettings() monitor.Settings {
	return w.Current().MonitorSettings()
}

// Subscribe registers fn to run after every accepted reload.
func (w *Watcher) Subscribe(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Reload reads the file again. On error the current configuration is kept
// and the error is returned. A missing or empty file is an error here,
// unlike LoadConfig, so a save in progress never reverts to the defaults.
func (w *Watcher) Reload() error {
	cfg, err := w.read()
	if err == nil {
		err = w.Apply(cfg)
	}
	if err != nil {
		w.logger.Warn("config reload rejected, keeping last known good", "path", w.path, "error", err)
		return err
	}
	w.logger.Info("config reloaded", "path", w.path)
	return nil
}

// Apply validates cfg and makes it current, then notifies subscribers. The
// file is not touched.
func (w *Watcher) Apply(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	w.current.Store(cfg)

	w.mu.Lock()
	subs := append([]func(*Config){}, w.subscribers...)
	w.mu.Unlock()
	for _, fn := range subs {
		fn(cfg)
	}
	return nil
}

func (w *Watcher) read() (*Config, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", w.path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.Wrapf(ErrEmptyConfig, "%s", w.path)
	}
	return parseConfig(w.path, data)
}

// Run watches the file's directory until ctx is cancelled. Watching the
// directory keeps working across editors that replace the file on save.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create file watcher")
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	target := filepath.Clean(w.path)
	w.logger.Debug("watching config", "path", target)

	var (
		pending *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			fire = nil
			_ = w.Reload()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.NewTimer(reloadDebounce)
			fire = pending.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

var (
	_ alert.ConfigProvider   = (*Watcher)(nil)
	_ monitor.ConfigProvider = (*Watcher)(nil)
	_ alert.ConfigProvider   = (*Config)(nil)
	_ monitor.ConfigProvider = (*Config)(nil)
)
