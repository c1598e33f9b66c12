package format

import (
	"testing"
	"time"
)

func TestTruncateWithEllipsis(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"Intel(R) Core(TM) i7", 10, "Intel(R..."},
		{"abcdef", 3, "abc"},
		{"abc", 0, ""},
		{"°C°C°C°C", 5, "°C..."},
	}
	for _, tt := range tests {
		if got := TruncateWithEllipsis(tt.in, tt.width); got != tt.want {
			t.Errorf("TruncateWithEllipsis(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestKeyValue(t *testing.T) {
	got := KeyValue([][2]string{{"Host", "box"}, {"Kernel", "6.8"}})
	want := "Host:   box\nKernel: 6.8"
	if got != want {
		t.Errorf("KeyValue =\n%q\nwant\n%q", got, want)
	}
	if KeyValue(nil) != "" {
		t.Error("expected empty output for no pairs")
	}
}

func TestSince(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "never"},
		{now.Add(-500 * time.Millisecond), "just now"},
		{now.Add(-3 * time.Second), "3s ago"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-2 * time.Hour), "2h ago"},
		{now.Add(-49 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		if got := Since(tt.t, now); got != tt.want {
			t.Errorf("Since(%v) = %q, want %q", now.Sub(tt.t), got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{time.Second, "1s"},
		{1500 * time.Millisecond, "1.5s"},
		{330 * time.Second, "5m 30s"},
		{135 * time.Minute, "2h 15m"},
		{76 * time.Hour, "3d 4h"},
		{-2 * time.Second, "2s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
