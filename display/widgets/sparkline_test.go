package widgets

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRenderSparkline_Empty(t *testing.T) {
	if got := RenderSparkline(SparklineConfig{}); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestRenderSparkline_FixedScale(t *testing.T) {
	got := RenderSparkline(PercentScale([]float64{0, 50, 100}, 0))
	if got != "▁▅█" {
		t.Errorf("got %q, want %q", got, "▁▅█")
	}
}

func TestRenderSparkline_AutoScale(t *testing.T) {
	got := RenderSparkline(SparklineConfig{Data: []float64{10, 20}})
	if got != "▁█" {
		t.Errorf("got %q, want %q", got, "▁█")
	}
}

func TestRenderSparkline_AllEqual(t *testing.T) {
	got := RenderSparkline(SparklineConfig{Data: []float64{5, 5, 5}})
	want := strings.Repeat(string(sparkBlocks[len(sparkBlocks)/2]), 3)
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderSparkline_KeepsNewest(t *testing.T) {
	got := RenderSparkline(PercentScale([]float64{100, 100, 0, 0}, 2))
	if got != "▁▁" {
		t.Errorf("expected the two newest points, got %q", got)
	}
}

func TestRenderSparkline_PadsLeft(t *testing.T) {
	got := RenderSparkline(PercentScale([]float64{100}, 4))
	if got != "   █" {
		t.Errorf("got %q, want right-aligned newest point", got)
	}
	if n := utf8.RuneCountInString(got); n != 4 {
		t.Errorf("width = %d, want 4", n)
	}
}

func TestRenderSparkline_ClampsOutOfRange(t *testing.T) {
	got := RenderSparkline(SparklineConfig{Data: []float64{-20, 150}, Min: 0, Max: 100})
	if got != "▁█" {
		t.Errorf("got %q, want %q", got, "▁█")
	}
}

func TestRenderSparkline_Label(t *testing.T) {
	got := RenderSparkline(SparklineConfig{Data: []float64{1, 2}, Label: "CPU"})
	if !strings.HasPrefix(got, "CPU ") {
		t.Errorf("missing label: %q", got)
	}
}

func TestRenderSparklineWithRange(t *testing.T) {
	got := RenderSparklineWithRange([]float64{12, 40, 87}, 0)
	if !strings.HasPrefix(got, "12") || !strings.HasSuffix(got, "87") {
		t.Errorf("expected min/max framing, got %q", got)
	}
	if RenderSparklineWithRange(nil, 10) != "" {
		t.Error("expected empty output for no data")
	}
	// Range is taken over the visible window only.
	got = RenderSparklineWithRange([]float64{1, 50, 60}, 2)
	if !strings.HasPrefix(got, "50") {
		t.Errorf("expected window minimum 50, got %q", got)
	}
}
