package monitor

import (
	"time"

	"gitlab.com/tinyland/lab/host-pulse/history"
)

const (
	// DefaultInterval is the sampling cadence when none is configured.
	DefaultInterval = time.Second
	// MinInterval is the fastest permitted cadence.
	MinInterval = 100 * time.Millisecond
	// MaxInterval is the slowest configurable cadence.
	MaxInterval = 5 * time.Second
	// MaxBackoffInterval caps the cadence reached through failure backoff.
	MaxBackoffInterval = 2 * time.Second
	// MaxHistoryLength bounds the per-metric history.
	MaxHistoryLength = 3600
	// DefaultUpdateBuffer is the capacity of the Updates channel.
	DefaultUpdateBuffer = 16
)

// Settings are the loop parameters that may change while it runs.
type Settings struct {
	Interval      time.Duration
	HistoryLength int
}

// DefaultSettings returns the built-in cadence and history length.
func DefaultSettings() Settings {
	return Settings{Interval: DefaultInterval, HistoryLength: history.DefaultCapacity}
}

// Normalize clamps s into the supported ranges. Zero values take defaults.
func (s Settings) Normalize() Settings {
	switch {
	case s.Interval <= 0:
		s.Interval = DefaultInterval
	case s.Interval < MinInterval:
		s.Interval = MinInterval
	case s.Interval > MaxInterval:
		s.Interval = MaxInterval
	}
	switch {
	case s.HistoryLength <= 0:
		s.HistoryLength = history.DefaultCapacity
	case s.HistoryLength > MaxHistoryLength:
		s.HistoryLength = MaxHistoryLength
	}
	return s
}

// ConfigProvider supplies the current settings. The loop consults it once
// per cycle.
type ConfigProvider interface {
	MonitorSettings() Settings
}

// StaticSettings is a ConfigProvider that never changes.
type StaticSettings Settings

// MonitorSettings returns s.
func (s StaticSettings) MonitorSettings() Settings { return Settings(s) }
