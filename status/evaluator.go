// Package status grades the latest snapshot against the alert policy and
// serves it over HTTP.
package status

import (
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// Level represents host health.
type Level int

const (
	LevelHealthy  Level = iota // below every warning line
	LevelWarning               // within the warning margin of a threshold
	LevelCritical              // over a threshold
	LevelUnknown               // metric not read
)

// String returns the human-readable name for a Level.
func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText renders the level name in JSON documents.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// levelSeverity returns the sort order for levels. Higher is worse.
// Critical > Warning > Unknown > Healthy.
func levelSeverity(l Level) int {
	switch l {
	case LevelHealthy:
		return 0
	case LevelUnknown:
		return 1
	case LevelWarning:
		return 2
	case LevelCritical:
		return 3
	default:
		return 0
	}
}

// worstLevel returns whichever Level is more severe.
func worstLevel(a, b Level) Level {
	if levelSeverity(a) >= levelSeverity(b) {
		return a
	}
	return b
}

// MetricStatus is the grade of a single metric.
type MetricStatus struct {
	Metric    collectors.Metric `json:"metric"`
	Level     Level             `json:"level"`
	Value     *float64          `json:"value"`
	Threshold float64           `json:"threshold"`
	Reason    string            `json:"reason"`
}

// HostStatus is the aggregate evaluation result.
type HostStatus struct {
	Overall     Level          `json:"overall"`
	Metrics     []MetricStatus `json:"metrics"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

// DefaultWarningMargin is how far below a threshold the warning level starts,
// in the metric's own unit.
const DefaultWarningMargin = 10.0

// Evaluator grades snapshots. The policy is read on every call so that
// threshold edits apply immediately.
type Evaluator struct {
	config alert.ConfigProvider
	margin float64
}

// NewEvaluator creates an Evaluator. A non-positive margin uses
// DefaultWarningMargin.
func NewEvaluator(config alert.ConfigProvider, margin float64) *Evaluator {
	if config == nil {
		config = alert.StaticPolicy(alert.DefaultPolicy())
	}
	if margin <= 0 {
		margin = DefaultWarningMargin
	}
	return &Evaluator{config: config, margin: margin}
}

// Evaluate grades every metric with a threshold. A metric missing from the
// snapshot is unknown, except GPU which is skipped when the host has none.
func (e *Evaluator) Evaluate(snap collectors.Snapshot) HostStatus {
	policy := e.config.AlertPolicy()

	out := HostStatus{Overall: LevelHealthy, EvaluatedAt: snap.Timestamp}
	if snap.Timestamp.IsZero() {
		out.Overall = LevelUnknown
		out.EvaluatedAt = time.Now()
	}

	for _, m := range collectors.AllMetrics {
		threshold, ok := policy.Thresholds[m]
		if !ok {
			continue
		}
		ms := e.evaluateMetric(snap, m, threshold)
		if ms.Level == LevelUnknown && m == collectors.MetricGPU {
			continue
		}
		out.Metrics = append(out.Metrics, ms)
		out.Overall = worstLevel(out.Overall, ms.Level)
	}
	return out
}

func (e *Evaluator) evaluateMetric(snap collectors.Snapshot, m collectors.Metric, threshold float64) MetricStatus {
	ms := MetricStatus{Metric: m, Threshold: threshold}

	v, ok := snap.Value(m)
	if !ok {
		ms.Level = LevelUnknown
		ms.Reason = "not available"
		return ms
	}
	ms.Value = collectors.Float(v)

	switch {
	case v > threshold:
		ms.Level = LevelCritical
		ms.Reason = fmt.Sprintf("%s at %.1f%s exceeds %.0f%s", m.Label(), v, m.Unit(), threshold, m.Unit())
	case v > threshold-e.margin:
		ms.Level = LevelWarning
		ms.Reason = fmt.Sprintf("%s at %.1f%s approaching %.0f%s", m.Label(), v, m.Unit(), threshold, m.Unit())
	default:
		ms.Level = LevelHealthy
		ms.Reason = fmt.Sprintf("%s at %.1f%s", m.Label(), v, m.Unit())
	}
	return ms
}
