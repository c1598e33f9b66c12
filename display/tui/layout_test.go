package tui

import (
	"strings"
	"testing"
)

func TestDetectLayout(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutSize
	}{
		{10, LayoutCompact},
		{59, LayoutCompact},
		{60, LayoutNormal},
		{120, LayoutNormal},
		{121, LayoutWide},
		{200, LayoutWide},
	}
	for _, tt := range tests {
		if got := DetectLayout(tt.width); got != tt.want {
			t.Errorf("DetectLayout(%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestLayoutForSize(t *testing.T) {
	tests := []struct {
		name        string
		size        LayoutSize
		width       int
		cards       int
		wantColumns int
		wantWidth   int
		wantSpark   bool
	}{
		{"compact", LayoutCompact, 50, 4, 1, 48, false},
		{"normal", LayoutNormal, 92, 4, 3, 30, true},
		{"normal few cards", LayoutNormal, 92, 2, 2, 45, true},
		{"wide", LayoutWide, 152, 5, 5, 30, true},
		{"floor", LayoutCompact, 10, 4, 1, 16, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LayoutForSize(tt.size, tt.width, tt.cards)
			if cfg.Columns != tt.wantColumns {
				t.Errorf("Columns = %d, want %d", cfg.Columns, tt.wantColumns)
			}
			if cfg.CardWidth != tt.wantWidth {
				t.Errorf("CardWidth = %d, want %d", cfg.CardWidth, tt.wantWidth)
			}
			if cfg.ShowSparklines != tt.wantSpark {
				t.Errorf("ShowSparklines = %v, want %v", cfg.ShowSparklines, tt.wantSpark)
			}
		})
	}
}

func TestChunk(t *testing.T) {
	rows := chunk([]string{"a", "b", "c", "d", "e"}, 2)
	if len(rows) != 3 || len(rows[2]) != 1 {
		t.Errorf("chunk = %v", rows)
	}
	if rows := chunk(nil, 3); len(rows) != 0 {
		t.Errorf("chunk(nil) = %v", rows)
	}
}

func TestHorizontalRule(t *testing.T) {
	if got := horizontalRule(3); got != strings.Repeat("─", 3) {
		t.Errorf("horizontalRule(3) = %q", got)
	}
	if horizontalRule(0) != "" {
		t.Error("expected empty rule for zero width")
	}
}
