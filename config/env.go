package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/joho/godotenv"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HOST_PULSE_"

// DefaultPath returns $XDG_CONFIG_HOME/host-pulse/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(xdgConfigHome(home), "host-pulse", "config.yaml")
}

// EnvFiles returns the dotenv files consulted at startup, in priority order.
func EnvFiles(configPath string) []string {
	files := []string{".env", "host-pulse.env"}
	if configPath != "" {
		files = append(files, filepath.Join(filepath.Dir(configPath), "host-pulse.env"))
	}
	return files
}

// LoadEnvFiles loads every existing file into the process environment.
// Variables already set are never overwritten, so the real environment
// wins over files and earlier files win over later ones.
func LoadEnvFiles(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return errors.Wrap(godotenv.Load(existing...), "load env files")
}

// applyEnvOverrides checks HOST_PULSE_* variables and overrides config values.
func applyEnvOverrides(cfg *Config) error {
	if v, ok := lookup("INTERVAL"); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return errors.WithMessage(err, EnvPrefix+"INTERVAL")
		}
		cfg.Monitor.Interval.Duration = d
	}
	if v, ok := lookup("HISTORY_LENGTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, EnvPrefix+"HISTORY_LENGTH")
		}
		cfg.Monitor.HistoryLength = n
	}
	if v, ok := lookup("DISK_PATH"); ok {
		cfg.Monitor.DiskPath = v
	}
	if v, ok := lookup("GRACE_PERIOD"); ok {
		d, err := ParseDuration(v)
		if err != nil {
			return errors.WithMessage(err, EnvPrefix+"GRACE_PERIOD")
		}
		cfg.Alerts.GracePeriod.Duration = d
	}
	for _, m := range collectors.AllMetrics {
		key := "THRESHOLD_" + strings.ToUpper(string(m))
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return errors.Wrap(err, EnvPrefix+key)
			}
			if cfg.Alerts.Thresholds == nil {
				cfg.Alerts.Thresholds = make(map[string]float64)
			}
			cfg.Alerts.Thresholds[string(m)] = f
		}
	}
	if v, ok := lookup("DESKTOP_NOTIFY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, EnvPrefix+"DESKTOP_NOTIFY")
		}
		cfg.Notify.Desktop = b
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := lookup("LOG_DIR"); ok {
		cfg.Logging.Dir = v
	}
	if v, ok := lookup("STATUS_LISTEN"); ok {
		cfg.Status.Listen = v
	}
	if v, ok := lookup("CACHE_DIR"); ok {
		cfg.Status.CacheDir = v
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgCacheHome returns XDG_CACHE_HOME or ~/.cache as fallback.
func xdgCacheHome(home string) string {
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".cache")
}

// xdgStateHome returns XDG_STATE_HOME or ~/.local/state as fallback.
func xdgStateHome(home string) string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".local", "state")
}
