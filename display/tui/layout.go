package tui

import "strings"

// LayoutSize represents a responsive breakpoint for terminal width.
type LayoutSize int

const (
	// LayoutCompact stacks cards one per row below 60 columns.
	LayoutCompact LayoutSize = iota
	// LayoutNormal fits three cards per row up to 120 columns.
	LayoutNormal
	// LayoutWide fits every card on one row.
	LayoutWide
)

// DetectLayout returns the appropriate LayoutSize for the given terminal width.
func DetectLayout(width int) LayoutSize {
	switch {
	case width < 60:
		return LayoutCompact
	case width <= 120:
		return LayoutNormal
	default:
		return LayoutWide
	}
}

// LayoutConfig holds responsive values that adapt to terminal width.
type LayoutConfig struct {
	// Columns is the number of cards per row.
	Columns int
	// CardWidth is the outer width of one card.
	CardWidth int
	// ShowSparklines adds the history row to cards.
	ShowSparklines bool
	// AlertLines is how many recent alerts are listed.
	AlertLines int
}

// LayoutForSize returns a LayoutConfig for the given size, width and card count.
func LayoutForSize(size LayoutSize, width, cards int) LayoutConfig {
	if cards < 1 {
		cards = 1
	}
	inner := width - 2 // content padding

	var cfg LayoutConfig
	switch size {
	case LayoutCompact:
		cfg = LayoutConfig{Columns: 1, ShowSparklines: false, AlertLines: 1}
	case LayoutWide:
		cfg = LayoutConfig{Columns: cards, ShowSparklines: true, AlertLines: 5}
	default:
		cfg = LayoutConfig{Columns: 3, ShowSparklines: true, AlertLines: 3}
	}
	if cfg.Columns > cards {
		cfg.Columns = cards
	}
	cfg.CardWidth = inner / cfg.Columns
	if cfg.CardWidth < 16 {
		cfg.CardWidth = 16
	}
	return cfg
}

// chunk splits items into rows of n.
func chunk(items []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	var rows [][]string
	for len(items) > 0 {
		end := n
		if end > len(items) {
			end = len(items)
		}
		rows = append(rows, items[:end])
		items = items[end:]
	}
	return rows
}

// horizontalRule returns a horizontal line of the given width using box-drawing
// characters.
func horizontalRule(width int) string {
	if width <= 0 {
		return ""
	}
	return strings.Repeat("─", width)
}
