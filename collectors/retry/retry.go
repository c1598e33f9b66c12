// Package retry adapts a sampling interval to repeated collection failures.
// After a run of consecutive failures the interval is stretched, up to a
// ceiling, so a struggling host is polled less aggressively. The loop is
// never stopped by failures.
package retry

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// State describes whether the interval has been stretched.
type State int

const (
	// StateSteady means the interval is still the configured one.
	StateSteady State = iota
	// StateBackedOff means at least one escalation has raised the interval.
	StateBackedOff
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateSteady:
		return "steady"
	case StateBackedOff:
		return "backed_off"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config configures the backoff behavior.
type Config struct {
	// MaxFailures is the number of consecutive failures that triggers one
	// escalation. The counter restarts after each escalation.
	MaxFailures int
	// Multiplier is applied to the interval on each escalation.
	Multiplier float64
	// MinInterval is the floor for any interval the backoff hands out.
	MinInterval time.Duration
	// MaxInterval caps escalation. An interval configured above the cap is
	// left untouched rather than lowered.
	MaxInterval time.Duration
	// Logger for escalation events. Nil is safe (a discard logger is used).
	Logger *slog.Logger
}

// DefaultConfig returns the sampling defaults: three strikes, 1.5x, and a
// 0.1s to 2s range.
func DefaultConfig() Config {
	return Config{
		MaxFailures: 3,
		Multiplier:  1.5,
		MinInterval: 100 * time.Millisecond,
		MaxInterval: 2 * time.Second,
	}
}

// Stats holds backoff statistics for external inspection.
type Stats struct {
	State            State         `json:"state"`
	Interval         time.Duration `json:"interval"`
	BaseInterval     time.Duration `json:"base_interval"`
	ConsecutiveFails int           `json:"consecutive_failures"`
	TotalFailures    int           `json:"total_failures"`
	TotalSuccesses   int           `json:"total_successes"`
	Escalations      int           `json:"escalations"`
	LastFailure      time.Time     `json:"last_failure"`
	LastSuccess      time.Time     `json:"last_success"`
}

// Backoff tracks consecutive failures and the resulting interval.
type Backoff struct {
	config Config
	logger *slog.Logger

	mu             sync.Mutex
	base           time.Duration
	interval       time.Duration
	failures       int
	totalFailures  int
	totalSuccesses int
	escalations    int
	lastFailure    time.Time
	lastSuccess    time.Time
}

// NewBackoff starts a backoff at the given interval. Zero-valued config
// fields take their defaults. If cfg.Logger is nil, a discard logger is used.
func NewBackoff(interval time.Duration, cfg Config) *Backoff {
	def := DefaultConfig()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = def.MaxInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Backoff{config: cfg, logger: logger}
	b.Reset(interval)
	return b
}

// Interval returns the interval to wait before the next attempt.
func (b *Backoff) Interval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}

// Failure records a failed attempt and returns the interval to use next.
// escalated is true when this failure raised the interval.
func (b *Backoff) Failure(now time.Time) (interval time.Duration, escalated bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.totalFailures++
	b.lastFailure = now

	if b.failures < b.config.MaxFailures {
		return b.interval, false
	}
	b.failures = 0

	next := time.Duration(float64(b.interval) * b.config.Multiplier)
	if next > b.config.MaxInterval {
		next = b.config.MaxInterval
	}
	if next <= b.interval {
		return b.interval, false
	}

	prev := b.interval
	b.interval = next
	b.escalations++
	b.logger.Warn("sampling backoff escalated",
		"from", prev,
		"to", next,
		"total_failures", b.totalFailures,
	)
	return b.interval, true
}

// Success records a successful attempt. The failure streak is cleared; the
// interval stays where escalation left it.
func (b *Backoff) Success(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures > 0 {
		b.logger.Debug("sampling recovered", "after_failures", b.failures)
	}
	b.failures = 0
	b.totalSuccesses++
	b.lastSuccess = now
}

// Reset installs a new base interval, clamped to the floor, and clears the
// failure streak. Totals are kept.
func (b *Backoff) Reset(interval time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if interval < b.config.MinInterval {
		interval = b.config.MinInterval
	}
	b.base = interval
	b.interval = interval
	b.failures = 0
}

// Stats returns a snapshot of the backoff statistics.
func (b *Backoff) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := StateSteady
	if b.interval != b.base {
		state = StateBackedOff
	}
	return Stats{
		State:            state,
		Interval:         b.interval,
		BaseInterval:     b.base,
		ConsecutiveFails: b.failures,
		TotalFailures:    b.totalFailures,
		TotalSuccesses:   b.totalSuccesses,
		Escalations:      b.escalations,
		LastFailure:      b.lastFailure,
		LastSuccess:      b.lastSuccess,
	}
}
