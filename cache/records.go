package cache

import (
	"io"
	"log/slog"
	"os"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/history"
	"gitlab.com/tinyland/lab/host-pulse/monitor"
)

// Keys of the documents written by Writer.
const (
	KeySnapshot = "snapshot"
	KeyHealth   = "health"
)

// SnapshotRecord is the latest reading plus per-metric summaries.
type SnapshotRecord struct {
	Snapshot collectors.Snapshot                 `json:"snapshot"`
	Stats    map[collectors.Metric]history.Stats `json:"stats"`
	Alerts   []alert.Alert                       `json:"alerts,omitempty"`
}

// HealthRecord describes the writing process's loop.
type HealthRecord struct {
	Status            string        `json:"status"`
	PID               int           `json:"pid"`
	Phase             string        `json:"phase"`
	LastSample        time.Time     `json:"last_sample"`
	Interval          time.Duration `json:"interval"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	Samples           int           `json:"samples"`
	Failures          int           `json:"failures"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Health statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusStopped  = "stopped"
)

// NewHealthRecord summarizes a loop state.
func NewHealthRecord(st monitor.State, now time.Time) HealthRecord {
	status := StatusOK
	switch {
	case st.Phase == monitor.PhaseStopped:
		status = StatusStopped
	case st.ConsecutiveErrors > 0:
		status = StatusDegraded
	}
	return HealthRecord{
		Status:            status,
		PID:               os.Getpid(),
		Phase:             st.Phase.String(),
		LastSample:        st.LastSample,
		Interval:          st.Interval,
		ConsecutiveErrors: st.ConsecutiveErrors,
		Samples:           st.Samples,
		Failures:          st.Failures,
		UpdatedAt:         now,
	}
}

// Stale reports whether the record is older than two sampling intervals.
func (h HealthRecord) Stale(now time.Time) bool {
	limit := 2 * h.Interval
	if limit <= 0 {
		limit = 2 * monitor.DefaultInterval
	}
	return now.Sub(h.UpdatedAt) > limit
}

// Writer mirrors monitor updates into a Store.
type Writer struct {
	store  *Store
	logger *slog.Logger
	window time.Duration
}

// NewWriter creates a Writer. Stats cover the trailing window; zero covers
// the whole history.
func NewWriter(store *Store, window time.Duration, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{store: store, logger: logger, window: window}
}

// WriteUpdate stores the snapshot record and the health record carried by u.
func (w *Writer) WriteUpdate(u monitor.Update) error {
	rec := SnapshotRecord{
		Snapshot: u.Snapshot,
		Stats:    StatsOf(u.History, u.Snapshot.Timestamp, w.window),
		Alerts:   u.Alerts,
	}
	if err := w.store.Put(KeySnapshot, rec); err != nil {
		return err
	}
	return w.WriteHealth(u.State, u.Snapshot.Timestamp)
}

// WriteHealth stores the health record for st.
func (w *Writer) WriteHealth(st monitor.State, now time.Time) error {
	return w.store.Put(KeyHealth, NewHealthRecord(st, now))
}

// Consume writes every update until the channel closes, then records a
// final stopped health document.
func (w *Writer) Consume(updates <-chan monitor.Update, final func() monitor.State) {
	for u := range updates {
		if err := w.WriteUpdate(u); err != nil {
			w.logger.Warn("snapshot write failed", "error", err)
		}
	}
	if final == nil {
		return
	}
	if err := w.WriteHealth(final(), time.Now()); err != nil {
		w.logger.Warn("final health write failed", "error", err)
	}
}

// StatsOf summarizes every series in view over the window ending at now.
func StatsOf(view history.View, now time.Time, window time.Duration) map[collectors.Metric]history.Stats {
	var since time.Time
	if window > 0 {
		since = now.Add(-window)
	}
	out := make(map[collectors.Metric]history.Stats, len(view))
	for m, samples := range view {
		if st := history.Summarize(samples, since); st.Count > 0 {
			out[m] = st
		}
	}
	return out
}
