// Package config provides configuration parsing for host-pulse.
package config

import (
	"maps"
	"os"
	"path/filepath"
	"sort"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/host-pulse/logging"
	"gitlab.com/tinyland/lab/host-pulse/monitor"
)

// Config represents the host-pulse configuration.
type Config struct {
	// Monitor holds sampling settings.
	Monitor MonitorConfig `yaml:"monitor"`

	// Alerts holds thresholds and the cooldown between alerts.
	Alerts AlertsConfig `yaml:"alerts"`

	// Notify selects where alerts are delivered.
	Notify NotifyConfig `yaml:"notify"`

	// Logging holds log level and file rotation settings.
	Logging LoggingConfig `yaml:"logging"`

	// Status holds the HTTP status server and snapshot cache settings.
	Status StatusConfig `yaml:"status"`
}

// MonitorConfig holds sampling settings.
type MonitorConfig struct {
	// Interval between samples, 0.1s to 5s.
	Interval Duration `yaml:"interval"`
	// HistoryLength is the number of samples kept per metric.
	HistoryLength int `yaml:"history_length"`
	// DiskPath is the mount point whose usage is reported.
	DiskPath string `yaml:"disk_path"`
	// CPUWindow is the CPU measurement window.
	CPUWindow Duration `yaml:"cpu_window"`
	// ProbeTTL controls how often GPU and temperature sources are
	// rediscovered. Zero probes once.
	ProbeTTL Duration `yaml:"probe_ttl"`
}

// AlertsConfig holds alert thresholds.
type AlertsConfig struct {
	// GracePeriod is the minimum time between two alerts for one metric.
	GracePeriod Duration `yaml:"grace_period"`
	// Thresholds maps metric name (cpu, ram, gpu, disk, temp) to its limit.
	Thresholds map[string]float64 `yaml:"thresholds"`
}

// NotifyConfig selects alert sinks.
type NotifyConfig struct {
	// Desktop raises native desktop notifications.
	Desktop bool `yaml:"desktop"`
	// Log writes each alert to the log as a warning.
	Log bool `yaml:"log"`
	// QueueSize bounds pending notifications; extra alerts are dropped.
	QueueSize int `yaml:"queue_size"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Dir receives rotated JSON logs. Empty disables file logging.
	Dir string `yaml:"dir"`
	// MaxSize is the rotation size, e.g. "5MB".
	MaxSize datasize.ByteSize `yaml:"max_size"`
	// MaxBackups is the number of rotated files kept.
	MaxBackups int `yaml:"max_backups"`
}

// StatusConfig holds the status surfaces.
type StatusConfig struct {
	// Listen is the HTTP status address, e.g. "127.0.0.1:9273". Empty
	// disables the server.
	Listen string `yaml:"listen"`
	// CacheDir receives snapshot.json and health.json.
	CacheDir string `yaml:"cache_dir"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	policy := alert.DefaultPolicy()
	thresholds := make(map[string]float64, len(policy.Thresholds))
	for m, v := range policy.Thresholds {
		thresholds[string(m)] = v
	}

	return &Config{
		Monitor: MonitorConfig{
			Interval:      Duration{monitor.DefaultInterval},
			HistoryLength: 60,
			DiskPath:      sysmetrics.DefaultDiskPath(),
			CPUWindow:     Duration{sysmetrics.DefaultConfig().CPUWindow},
		},
		Alerts: AlertsConfig{
			GracePeriod: Duration{alert.DefaultGracePeriod},
			Thresholds:  thresholds,
		},
		Notify: NotifyConfig{
			Desktop:   true,
			Log:       true,
			QueueSize: 16,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        filepath.Join(xdgStateHome(home), "host-pulse", "logs"),
			MaxSize:    5 * datasize.MB,
			MaxBackups: 5,
		},
		Status: StatusConfig{
			CacheDir: filepath.Join(xdgCacheHome(home), "host-pulse"),
		},
	}
}

// LoadConfig loads configuration from a YAML file, merging with defaults,
// then applies HOST_PULSE_* environment overrides. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	return parseConfig(path, data)
}

// parseConfig merges data over the defaults and applies environment
// overrides.
func parseConfig(path string, data []byte) (*Config, error) {
	config := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for ranges and known names.
func (c *Config) Validate() error {
	iv := c.Monitor.Interval.Duration
	if iv < monitor.MinInterval || iv > monitor.MaxInterval {
		return errors.Errorf("monitor.interval must be between %s and %s, got %s", monitor.MinInterval, monitor.MaxInterval, iv)
	}
	if c.Monitor.HistoryLength < 1 || c.Monitor.HistoryLength > monitor.MaxHistoryLength {
		return errors.Errorf("monitor.history_length must be between 1 and %d, got %d", monitor.MaxHistoryLength, c.Monitor.HistoryLength)
	}
	if c.Monitor.CPUWindow.Duration < 0 || c.Monitor.CPUWindow.Duration >= iv {
		return errors.Errorf("monitor.cpu_window must be shorter than monitor.interval, got %s", c.Monitor.CPUWindow)
	}
	if c.Monitor.ProbeTTL.Duration < 0 {
		return errors.Errorf("monitor.probe_ttl must be non-negative, got %s", c.Monitor.ProbeTTL)
	}

	if c.Alerts.GracePeriod.Duration < 0 {
		return errors.Errorf("alerts.grace_period must be non-negative, got %s", c.Alerts.GracePeriod)
	}
	names := make([]string, 0, len(c.Alerts.Thresholds))
	for name := range c.Alerts.Thresholds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := collectors.ParseMetric(name); !ok {
			return errors.Errorf("alerts.thresholds: unknown metric %q", name)
		}
		if v := c.Alerts.Thresholds[name]; v < 0 || v > 100 {
			return errors.Errorf("alerts.thresholds.%s must be between 0 and 100, got %g", name, v)
		}
	}

	if c.Notify.QueueSize < 1 {
		return errors.Errorf("notify.queue_size must be positive, got %d", c.Notify.QueueSize)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errors.WithMessage(err, "logging.level")
	}
	if c.Logging.MaxBackups < 0 {
		return errors.Errorf("logging.max_backups must be non-negative, got %d", c.Logging.MaxBackups)
	}

	if c.Status.CacheDir == "" {
		return errors.New("status.cache_dir is required")
	}

	return nil
}

// SaveConfig saves configuration to a YAML file.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create config directory %s", dir)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}

	return errors.Wrap(os.WriteFile(path, data, 0o644), "write config")
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Alerts.Thresholds = maps.Clone(c.Alerts.Thresholds)
	return &out
}

// AlertPolicy converts the alert section for the alerter.
func (c *Config) AlertPolicy() alert.Policy {
	p := alert.Policy{
		Thresholds:  make(map[collectors.Metric]float64, len(c.Alerts.Thresholds)),
		GracePeriod: c.Alerts.GracePeriod.Duration,
	}
	for name, v := range c.Alerts.Thresholds {
		if m, ok := collectors.ParseMetric(name); ok {
			p.Thresholds[m] = v
		}
	}
	return p
}

// MonitorSettings converts the monitor section for the loop.
func (c *Config) MonitorSettings() monitor.Settings {
	return monitor.Settings{
		Interval:      c.Monitor.Interval.Duration,
		HistoryLength: c.Monitor.HistoryLength,
	}
}

// SamplerConfig converts the monitor section for the system sampler.
func (c *Config) SamplerConfig() sysmetrics.Config {
	return sysmetrics.Config{
		DiskPath:  c.Monitor.DiskPath,
		CPUWindow: c.Monitor.CPUWindow.Duration,
		ProbeTTL:  c.Monitor.ProbeTTL.Duration,
	}
}

// LoggingOptions converts the logging section; console output is left to
// the caller.
func (c *Config) LoggingOptions() logging.Options {
	size := int(c.Logging.MaxSize.MBytes())
	if size < 1 {
		size = 1
	}
	return logging.Options{
		Level:      c.Logging.Level,
		Dir:        c.Logging.Dir,
		MaxSizeMB:  size,
		MaxBackups: c.Logging.MaxBackups,
	}
}
