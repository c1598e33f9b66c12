// Package alert decides when a metric reading warrants a notification.
//
// Each metric is either Armed or Cooling. An Armed metric whose reading is
// strictly above its threshold fires and becomes Cooling; it rearms once
// strictly more than the grace period has elapsed since it last fired.
// There is no hysteresis: dropping below the threshold does not rearm early.
package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/notify"
)

// DefaultGracePeriod is the minimum spacing between two alerts for the
// same metric.
const DefaultGracePeriod = 300 * time.Second

// Policy is the alerting configuration in effect for one evaluation.
type Policy struct {
	// Thresholds maps each metric to its limit. Metrics without an entry
	// never alert.
	Thresholds map[collectors.Metric]float64
	// GracePeriod is the cooldown after a metric fires.
	GracePeriod time.Duration
}

// DefaultPolicy returns the built-in thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Thresholds: map[collectors.Metric]float64{
			collectors.MetricCPU:  80,
			collectors.MetricRAM:  80,
			collectors.MetricDisk: 80,
			collectors.MetricGPU:  90,
			collectors.MetricTemp: 70,
		},
		GracePeriod: DefaultGracePeriod,
	}
}

// ConfigProvider supplies the current policy. It is consulted on every
// evaluation so that edits take effect without a restart.
type ConfigProvider interface {
	AlertPolicy() Policy
}

// StaticPolicy is a ConfigProvider that never changes.
type StaticPolicy Policy

// AlertPolicy returns p.
func (p StaticPolicy) AlertPolicy() Policy { return Policy(p) }

// State is the per-metric alert state.
type State int

const (
	StateArmed State = iota
	StateCooling
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateCooling:
		return "cooling"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Alert is one fired notification.
type Alert struct {
	Metric    collectors.Metric `json:"metric"`
	Value     float64           `json:"value"`
	Threshold float64           `json:"threshold"`
	FiredAt   time.Time         `json:"fired_at"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
}

// Alerter evaluates snapshots and dispatches notifications. Evaluation is
// expected from a single goroutine; the state accessors are safe to call
// concurrently.
type Alerter struct {
	config   ConfigProvider
	notifier notify.Notifier
	logger   *slog.Logger

	mu        sync.RWMutex
	lastFired map[collectors.Metric]time.Time
}

// New creates an Alerter. A nil config uses DefaultPolicy, a nil notifier
// drops notifications, and a nil logger discards output.
func New(config ConfigProvider, notifier notify.Notifier, logger *slog.Logger) *Alerter {
	if config == nil {
		config = StaticPolicy(DefaultPolicy())
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Alerter{
		config:    config,
		notifier:  notifier,
		logger:    logger,
		lastFired: make(map[collectors.Metric]time.Time),
	}
}

// Evaluate checks every available reading of snap against the current
// policy, using snap.Timestamp as the clock. It returns the alerts that
// fired, after handing each to the notifier.
func (a *Alerter) Evaluate(ctx context.Context, snap collectors.Snapshot) []Alert {
	policy := a.config.AlertPolicy()
	now := snap.Timestamp

	var fired []Alert
	a.mu.Lock()
	for _, m := range collectors.AllMetrics {
		value, ok := snap.Value(m)
		if !ok {
			continue
		}
		threshold, ok := policy.Thresholds[m]
		if !ok || value <= threshold {
			continue
		}
		if last, ok := a.lastFired[m]; ok && now.Sub(last) <= policy.GracePeriod {
			continue
		}
		a.lastFired[m] = now
		fired = append(fired, newAlert(m, value, threshold, now))
	}
	a.mu.Unlock()

	for _, al := range fired {
		a.logger.Info("alert fired",
			"metric", string(al.Metric),
			"value", al.Value,
			"threshold", al.Threshold,
		)
		if a.notifier == nil {
			continue
		}
		if err := a.notifier.Notify(ctx, al.Title, al.Message); err != nil {
			a.logger.Warn("alert notification failed", "metric", string(al.Metric), "error", err)
		}
	}
	return fired
}

func newAlert(m collectors.Metric, value, threshold float64, now time.Time) Alert {
	var msg string
	if m.IsPercent() {
		msg = fmt.Sprintf("%s usage high: %.1f%s", m.Label(), value, m.Unit())
	} else {
		msg = fmt.Sprintf("%s high: %.1f%s", m.Label(), value, m.Unit())
	}
	return Alert{
		Metric:    m,
		Value:     value,
		Threshold: threshold,
		FiredAt:   now,
		Title:     m.Label() + " Alert",
		Message:   msg,
	}
}

// StateOf reports whether m would be allowed to fire at now.
func (a *Alerter) StateOf(m collectors.Metric, now time.Time) State {
	grace := a.config.AlertPolicy().GracePeriod
	a.mu.RLock()
	defer a.mu.RUnlock()
	if last, ok := a.lastFired[m]; ok && now.Sub(last) <= grace {
		return StateCooling
	}
	return StateArmed
}

// LastFired returns when m last fired.
func (a *Alerter) LastFired(m collectors.Metric) (time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.lastFired[m]
	return t, ok
}

// Reset rearms every metric.
func (a *Alerter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.lastFired)
}
