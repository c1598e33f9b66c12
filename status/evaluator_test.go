package status

import (
	"testing"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// --- Helpers ---

func makeSnapshot(cpu, ram, disk float64, temp, gpu *float64) collectors.Snapshot {
	return collectors.Snapshot{
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		CPU:         collectors.Float(cpu),
		RAM:         collectors.Float(ram),
		Disk:        collectors.Float(disk),
		Temperature: temp,
		GPU:         gpu,
	}
}

func findMetric(t *testing.T, st HostStatus, m collectors.Metric) MetricStatus {
	t.Helper()
	for _, ms := range st.Metrics {
		if ms.Metric == m {
			return ms
		}
	}
	t.Fatalf("metric %s not in status", m)
	return MetricStatus{}
}

// --- Level ---

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelHealthy, "healthy"},
		{LevelWarning, "warning"},
		{LevelCritical, "critical"},
		{LevelUnknown, "unknown"},
		{Level(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestWorstLevel(t *testing.T) {
	tests := []struct {
		a, b Level
		want Level
	}{
		{LevelHealthy, LevelWarning, LevelWarning},
		{LevelCritical, LevelWarning, LevelCritical},
		{LevelUnknown, LevelHealthy, LevelUnknown},
		{LevelUnknown, LevelWarning, LevelWarning},
	}
	for _, tt := range tests {
		if got := worstLevel(tt.a, tt.b); got != tt.want {
			t.Errorf("worstLevel(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

// --- Evaluate ---

func TestEvaluate_Levels(t *testing.T) {
	e := NewEvaluator(nil, 0)

	tests := []struct {
		name string
		cpu  float64
		want Level
	}{
		{"well below", 20, LevelHealthy},
		{"margin edge", 70, LevelHealthy},
		{"inside margin", 75, LevelWarning},
		{"at threshold", 80, LevelWarning},
		{"over threshold", 80.5, LevelCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := e.Evaluate(makeSnapshot(tt.cpu, 10, 10, collectors.Float(40), nil))
			if got := findMetric(t, st, collectors.MetricCPU).Level; got != tt.want {
				t.Errorf("cpu %.1f: level = %v, want %v", tt.cpu, got, tt.want)
			}
			if st.Overall != tt.want {
				t.Errorf("overall = %v, want %v", st.Overall, tt.want)
			}
		})
	}
}

func TestEvaluate_MissingMetrics(t *testing.T) {
	e := NewEvaluator(nil, 0)
	st := e.Evaluate(makeSnapshot(10, 10, 10, nil, nil))

	for _, ms := range st.Metrics {
		if ms.Metric == collectors.MetricGPU {
			t.Fatal("absent GPU should be skipped")
		}
	}
	temp := findMetric(t, st, collectors.MetricTemp)
	if temp.Level != LevelUnknown || temp.Value != nil {
		t.Errorf("temp = %+v, want unknown with nil value", temp)
	}
	if st.Overall != LevelUnknown {
		t.Errorf("overall = %v, want unknown", st.Overall)
	}
}

func TestEvaluate_CriticalBeatsUnknown(t *testing.T) {
	e := NewEvaluator(nil, 0)
	st := e.Evaluate(makeSnapshot(10, 95, 10, nil, collectors.Float(99)))
	if st.Overall != LevelCritical {
		t.Errorf("overall = %v, want critical", st.Overall)
	}
	if got := findMetric(t, st, collectors.MetricGPU).Level; got != LevelCritical {
		t.Errorf("gpu level = %v, want critical", got)
	}
}

func TestEvaluate_ZeroSnapshotIsUnknown(t *testing.T) {
	st := NewEvaluator(nil, 0).Evaluate(collectors.Snapshot{})
	if st.Overall != LevelUnknown {
		t.Errorf("overall = %v, want unknown", st.Overall)
	}
}

func TestEvaluate_ReadsPolicyEachCall(t *testing.T) {
	policy := alert.DefaultPolicy()
	provider := &mutablePolicy{p: policy}
	e := NewEvaluator(provider, 5)

	snap := makeSnapshot(60, 10, 10, collectors.Float(30), nil)
	if got := e.Evaluate(snap).Overall; got != LevelHealthy {
		t.Fatalf("overall = %v, want healthy", got)
	}

	provider.p.Thresholds = map[collectors.Metric]float64{collectors.MetricCPU: 50}
	st := e.Evaluate(snap)
	if st.Overall != LevelCritical {
		t.Errorf("after threshold change overall = %v, want critical", st.Overall)
	}
	if len(st.Metrics) != 1 {
		t.Errorf("metrics without thresholds should be skipped, got %d", len(st.Metrics))
	}
}

func TestEvaluate_TemperatureReason(t *testing.T) {
	st := NewEvaluator(nil, 0).Evaluate(makeSnapshot(10, 10, 10, collectors.Float(95), nil))
	temp := findMetric(t, st, collectors.MetricTemp)
	want := "Temperature at 95.0°C exceeds 70°C"
	if temp.Reason != want {
		t.Errorf("reason = %q, want %q", temp.Reason, want)
	}
}

type mutablePolicy struct{ p alert.Policy }

func (m *mutablePolicy) AlertPolicy() alert.Policy { return m.p }
