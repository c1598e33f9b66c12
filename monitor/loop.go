// Package monitor drives periodic sampling: it owns the cadence, backs off
// on repeated failures, records history, runs the alerter and hands each
// result to consumers.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"emperror.dev/errors"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/collectors/retry"
	"gitlab.com/tinyland/lab/host-pulse/history"
	"gitlab.com/tinyland/lab/host-pulse/logging"
)

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.Sentinel("monitor loop already started")

// Phase is the lifecycle position of a Loop.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// MarshalText renders the phase name in JSON documents.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is a point-in-time copy of the loop's bookkeeping.
type State struct {
	Phase             Phase         `json:"phase"`
	Interval          time.Duration `json:"interval"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	LastSample        time.Time     `json:"last_sample"`
	Samples           int           `json:"samples"`
	Failures          int           `json:"failures"`
	Dropped           int           `json:"dropped_updates"`
}

// Update is handed to consumers after every successful cycle.
type Update struct {
	Snapshot collectors.Snapshot
	History  history.View
	Alerts   []alert.Alert
	State    State
}

// Options configures a Loop. Every field is optional.
type Options struct {
	Config       ConfigProvider
	History      *history.Set
	Alerter      *alert.Alerter
	Backoff      retry.Config
	UpdateBuffer int
	Clock        Clock
	Logger       *slog.Logger
}

// Loop samples the host until stopped. Run executes it on the caller's
// goroutine; every other method is safe to call from any goroutine.
type Loop struct {
	sampler collectors.Sampler
	config  ConfigProvider
	set     *history.Set
	alerter *alert.Alerter
	backoff *retry.Backoff
	clock   Clock
	logger  *slog.Logger

	settings Settings
	updates  chan Update

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu    sync.RWMutex
	state State
}

// New creates a Loop around sampler.
func New(sampler collectors.Sampler, opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Config == nil {
		opts.Config = StaticSettings(DefaultSettings())
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.UpdateBuffer <= 0 {
		opts.UpdateBuffer = DefaultUpdateBuffer
	}
	if opts.Backoff.Logger == nil {
		opts.Backoff.Logger = opts.Logger
	}
	if opts.Backoff.MinInterval <= 0 {
		opts.Backoff.MinInterval = MinInterval
	}
	if opts.Backoff.MaxInterval <= 0 {
		opts.Backoff.MaxInterval = MaxBackoffInterval
	}

	settings := opts.Config.MonitorSettings().Normalize()
	set := opts.History
	if set == nil {
		set = history.NewSet(settings.HistoryLength)
	} else {
		set.Resize(settings.HistoryLength)
	}

	l := &Loop{
		sampler:  sampler,
		config:   opts.Config,
		set:      set,
		alerter:  opts.Alerter,
		backoff:  retry.NewBackoff(settings.Interval, opts.Backoff),
		clock:    opts.Clock,
		logger:   opts.Logger,
		settings: settings,
		updates:  make(chan Update, opts.UpdateBuffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	l.state.Interval = settings.Interval
	return l
}

// Updates delivers one Update per successful cycle. It is closed when Run
// returns. A slow consumer loses the oldest pending updates, never blocks
// the loop.
func (l *Loop) Updates() <-chan Update {
	return l.updates
}

// History returns the series the loop records into.
func (l *Loop) History() *history.Set {
	return l.set
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// State returns a copy of the loop's current bookkeeping.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Run samples until Stop is called or ctx is cancelled. Sampling failures
// never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(l.done)
	defer close(l.updates)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	l.setPhase(PhaseRunning)
	defer l.setPhase(PhaseStopped)

	l.logger.Info("monitor loop started",
		"interval", l.settings.Interval,
		"history_length", l.settings.HistoryLength,
	)
	defer l.logger.Info("monitor loop stopped")

	var last time.Time
	for {
		l.applySettings()

		if !last.IsZero() {
			if wait := l.backoff.Interval() - l.clock.Now().Sub(last); wait > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-l.clock.After(wait):
				}
			}
		}
		if ctx.Err() != nil || l.stopped() {
			return nil
		}

		last = l.clock.Now()
		l.tick(ctx, last)
	}
}

// Stop ends the loop. It is idempotent and waits at most one sampling
// interval for Run to return.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	if !l.started.Load() {
		return
	}

	select {
	case <-l.done:
	case <-time.After(l.backoff.Interval()):
		l.logger.Warn("monitor loop stop timed out", "waited", l.backoff.Interval())
	}
}

func (l *Loop) stopped() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// applySettings picks up configuration changes between cycles.
func (l *Loop) applySettings() {
	next := l.config.MonitorSettings().Normalize()
	if next.Interval != l.settings.Interval {
		l.logger.Info("sampling interval changed", "from", l.settings.Interval, "to", next.Interval)
		l.backoff.Reset(next.Interval)
	}
	if next.HistoryLength != l.settings.HistoryLength {
		l.logger.Info("history length changed", "from", l.settings.HistoryLength, "to", next.HistoryLength)
		l.set.Resize(next.HistoryLength)
	}
	l.settings = next
}

// tick runs one sampling cycle that started at start.
func (l *Loop) tick(ctx context.Context, start time.Time) {
	snap, err := l.sampler.Sample(ctx)
	if ctx.Err() != nil || l.stopped() {
		return
	}
	elapsed := l.clock.Now().Sub(start)

	if err != nil {
		interval, escalated := l.backoff.Failure(start)
		stats := l.backoff.Stats()
		l.logger.Warn("sample failed",
			"error", err,
			"consecutive_failures", stats.ConsecutiveFails,
			"total_failures", stats.TotalFailures,
		)
		if escalated {
			logging.Log(ctx, l.logger, slog.LevelWarn, logging.Performance(
				slog.String("reason", "backoff"),
				slog.Duration("interval", interval),
				slog.Int("escalations", stats.Escalations),
			))
		}
		l.updateState(func(s *State) {
			s.LastSample = start
			s.Failures++
		})
		return
	}

	l.backoff.Success(start)
	for _, w := range snap.Warnings {
		l.logger.Debug("metric unavailable", "warning", w)
	}

	l.set.Record(snap)
	var alerts []alert.Alert
	if l.alerter != nil {
		alerts = l.alerter.Evaluate(ctx, snap)
	}
	logging.Log(ctx, l.logger, slog.LevelDebug, logging.Metrics(snap))
	if interval := l.backoff.Interval(); elapsed > interval {
		logging.Log(ctx, l.logger, slog.LevelWarn, logging.Performance(
			slog.String("reason", "overrun"),
			slog.Duration("sample_time", elapsed),
			slog.Duration("interval", interval),
		))
	}

	state := l.updateState(func(s *State) {
		s.LastSample = start
		s.Samples++
	})
	if l.stopped() {
		return
	}
	l.publish(Update{Snapshot: snap, History: l.set.View(), Alerts: alerts, State: state})
}

// publish hands u to consumers without blocking, evicting the oldest
// pending update when the channel is full.
func (l *Loop) publish(u Update) {
	select {
	case l.updates <- u:
		return
	default:
	}

	select {
	case <-l.updates:
	default:
	}
	select {
	case l.updates <- u:
	default:
	}
	state := l.updateState(func(s *State) { s.Dropped++ })
	l.logger.Debug("update channel full, dropped oldest", "dropped_total", state.Dropped)
}

func (l *Loop) setPhase(p Phase) {
	l.updateState(func(s *State) { s.Phase = p })
}

func (l *Loop) updateState(fn func(*State)) State {
	stats := l.backoff.Stats()
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.state)
	l.state.Interval = stats.Interval
	l.state.ConsecutiveErrors = stats.ConsecutiveFails
	return l.state
}
