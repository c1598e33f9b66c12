package collectors

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"emperror.dev/errors"
)

// refTime is a fixed reference time used across model tests.
var refTime = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func TestClamp(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{42.5, 42.5},
		{100, 100},
		{100.0001, 100},
		{250, 100},
		{math.Inf(1), 100},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		got := Clamp(tt.in)
		if got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if again := Clamp(got); again != got {
			t.Errorf("Clamp not idempotent for %v: %v then %v", tt.in, got, again)
		}
		if got < 0 || got > 100 {
			t.Errorf("Clamp(%v) = %v out of range", tt.in, got)
		}
	}
}

func TestParseMetric(t *testing.T) {
	tests := []struct {
		in   string
		want Metric
		ok   bool
	}{
		{"cpu", MetricCPU, true},
		{" RAM ", MetricRAM, true},
		{"Temperature", MetricTemp, true},
		{"temp", MetricTemp, true},
		{"swap", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMetric(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseMetric(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMetricUnit(t *testing.T) {
	if MetricTemp.Unit() != "°C" || MetricTemp.IsPercent() {
		t.Error("temperature should be reported in Celsius and not clamped")
	}
	for _, m := range []Metric{MetricCPU, MetricRAM, MetricGPU, MetricDisk} {
		if m.Unit() != "%" || !m.IsPercent() {
			t.Errorf("%s should be a percentage", m)
		}
	}
}

func TestSnapshotValue_Unavailable(t *testing.T) {
	snap := Snapshot{Timestamp: refTime, CPU: Percent(12), Disk: Percent(40)}

	if v, ok := snap.Value(MetricCPU); !ok || v != 12 {
		t.Errorf("cpu = %v, %v", v, ok)
	}
	if _, ok := snap.Value(MetricGPU); ok {
		t.Error("gpu should be unavailable")
	}

	values := snap.Values()
	if len(values) != 2 {
		t.Errorf("len(Values) = %d, want 2", len(values))
	}
}

func TestSnapshot_JSONNulls(t *testing.T) {
	snap := Snapshot{Timestamp: refTime, CPU: Percent(50)}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"gpu_percent":null`) {
		t.Errorf("unavailable gpu should encode as null: %s", s)
	}
	if !strings.Contains(s, `"cpu_percent":50`) {
		t.Errorf("cpu missing: %s", s)
	}
}

func TestScriptedSampler(t *testing.T) {
	boom := errors.New("boom")
	s := NewScriptedSampler(nil,
		ScriptStep{Snapshot: MockSnapshot(refTime, 10)},
		ScriptStep{Err: boom},
	)
	ctx := context.Background()

	snap, err := s.Sample(ctx)
	if err != nil || *snap.CPU != 10 {
		t.Fatalf("first sample = %+v, %v", snap, err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Sample(ctx); !errors.Is(err, boom) {
			t.Errorf("sample %d err = %v, want boom", i, err)
		}
	}
	if s.Calls() != 4 {
		t.Errorf("Calls() = %d, want 4", s.Calls())
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Sample(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled sample err = %v", err)
	}
}
