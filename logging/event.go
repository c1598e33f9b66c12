package logging

import (
	"context"
	"log/slog"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// Kind classifies structured log events so that log consumers can filter
// metric readings from loop diagnostics.
type Kind string

const (
	KindMetrics     Kind = "metrics"
	KindPerformance Kind = "performance"
	KindSystemInfo  Kind = "system-info"
)

// Event is a typed structured log entry.
type Event struct {
	Kind   Kind
	Fields []slog.Attr
}

// LogValue renders the event as a group carrying its kind.
func (e Event) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.Fields)+1)
	attrs = append(attrs, slog.String("kind", string(e.Kind)))
	attrs = append(attrs, e.Fields...)
	return slog.GroupValue(attrs...)
}

// Metrics builds an event from one snapshot. Unavailable metrics are
// omitted.
func Metrics(snap collectors.Snapshot) Event {
	fields := make([]slog.Attr, 0, len(collectors.AllMetrics))
	for _, m := range collectors.AllMetrics {
		if v, ok := snap.Value(m); ok {
			fields = append(fields, slog.Float64(string(m), v))
		}
	}
	return Event{Kind: KindMetrics, Fields: fields}
}

// Performance builds an event from loop diagnostics.
func Performance(fields ...slog.Attr) Event {
	return Event{Kind: KindPerformance, Fields: fields}
}

// SystemInfo builds an event from any value that renders itself for slog.
func SystemInfo(info slog.LogValuer) Event {
	v := info.LogValue()
	if v.Kind() != slog.KindGroup {
		return Event{Kind: KindSystemInfo, Fields: []slog.Attr{slog.Any("info", v)}}
	}
	return Event{Kind: KindSystemInfo, Fields: v.Group()}
}

// Log writes ev under the "event" key with a message equal to its kind.
func Log(ctx context.Context, logger *slog.Logger, level slog.Level, ev Event) {
	logger.LogAttrs(ctx, level, string(ev.Kind), slog.Any("event", ev))
}
