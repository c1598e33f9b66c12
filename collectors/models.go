package collectors

import (
	"math"
	"strings"
	"time"
)

// Metric identifies one tracked host metric.
type Metric string

const (
	MetricCPU  Metric = "cpu"
	MetricRAM  Metric = "ram"
	MetricGPU  Metric = "gpu"
	MetricDisk Metric = "disk"
	MetricTemp Metric = "temp"
)

// AllMetrics lists every tracked metric in display order.
var AllMetrics = []Metric{MetricCPU, MetricRAM, MetricGPU, MetricDisk, MetricTemp}

// Label returns the human-facing name used in alerts and the dashboard.
func (m Metric) Label() string {
	switch m {
	case MetricCPU:
		return "CPU"
	case MetricRAM:
		return "RAM"
	case MetricGPU:
		return "GPU"
	case MetricDisk:
		return "Disk"
	case MetricTemp:
		return "Temperature"
	default:
		return string(m)
	}
}

// Unit is "%" for utilization metrics and "°C" for temperature.
func (m Metric) Unit() string {
	if m == MetricTemp {
		return "°C"
	}
	return "%"
}

// IsPercent reports whether values of m are clamped to [0, 100].
func (m Metric) IsPercent() bool {
	return m != MetricTemp
}

// ParseMetric resolves a metric name case-insensitively. "temperature" is
// accepted as an alias for "temp".
func ParseMetric(s string) (Metric, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "temperature" {
		return MetricTemp, true
	}
	for _, m := range AllMetrics {
		if string(m) == name {
			return m, true
		}
	}
	return "", false
}

// Snapshot is one sampling cycle's worth of readings. A nil field means the
// metric was unavailable for that cycle. Snapshots are treated as immutable
// once returned by a Sampler.
type Snapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	CPU         *float64  `json:"cpu_percent"`
	RAM         *float64  `json:"ram_percent"`
	GPU         *float64  `json:"gpu_percent"`
	Disk        *float64  `json:"disk_percent"`
	Temperature *float64  `json:"temperature_celsius"`

	// Warnings records per-metric read failures that did not fail the cycle.
	Warnings []string `json:"warnings,omitempty"`
}

// Value returns the reading for m and whether it was available.
func (s Snapshot) Value(m Metric) (float64, bool) {
	var p *float64
	switch m {
	case MetricCPU:
		p = s.CPU
	case MetricRAM:
		p = s.RAM
	case MetricGPU:
		p = s.GPU
	case MetricDisk:
		p = s.Disk
	case MetricTemp:
		p = s.Temperature
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Values returns the available readings keyed by metric.
func (s Snapshot) Values() map[Metric]float64 {
	out := make(map[Metric]float64, len(AllMetrics))
	for _, m := range AllMetrics {
		if v, ok := s.Value(m); ok {
			out[m] = v
		}
	}
	return out
}

// Clamp bounds a percentage to [0, 100]. NaN maps to 0 so that a broken
// OS counter can never poison the history.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Percent returns a pointer to the clamped value.
func Percent(v float64) *float64 {
	c := Clamp(v)
	return &c
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
