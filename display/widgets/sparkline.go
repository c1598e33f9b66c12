package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sparkBlocks contains 8 unicode block characters for sparkline rendering,
// ordered from lowest to highest.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// SparklineConfig controls the appearance of a sparkline chart.
type SparklineConfig struct {
	// Data points to render, oldest first.
	Data []float64
	// Width is the number of cells. Zero uses len(Data). Short data is
	// left-padded so the newest point stays on the right edge.
	Width int
	// Min and Max fix the vertical scale. Equal values auto-scale.
	Min float64
	Max float64
	// Label is optional text shown before the sparkline.
	Label string
	// Color is the foreground for the blocks.
	Color lipgloss.Color
}

// PercentScale returns a config fixed to the 0-100 range.
func PercentScale(data []float64, width int) SparklineConfig {
	return SparklineConfig{Data: data, Width: width, Min: 0, Max: 100}
}

func bounds(data []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func block(v, lo, hi float64) rune {
	if hi <= lo {
		return sparkBlocks[len(sparkBlocks)/2]
	}
	n := math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
	return sparkBlocks[int(math.Round(n*float64(len(sparkBlocks)-1)))]
}

// RenderSparkline renders a unicode sparkline chart.
func RenderSparkline(cfg SparklineConfig) string {
	if len(cfg.Data) == 0 {
		return ""
	}

	data := cfg.Data
	width := cfg.Width
	if width <= 0 {
		width = len(data)
	}
	if width < len(data) {
		data = data[len(data)-width:]
	}

	lo, hi := cfg.Min, cfg.Max
	if lo == hi {
		lo, hi = bounds(data)
	}

	runes := make([]rune, 0, len(data))
	for _, v := range data {
		runes = append(runes, block(v, lo, hi))
	}

	out := strings.Repeat(" ", width-len(data)) + string(runes)
	if cfg.Color != "" {
		out = lipgloss.NewStyle().Foreground(cfg.Color).Render(out)
	}
	if cfg.Label != "" {
		out = cfg.Label + " " + out
	}
	return out
}

// RenderSparklineWithRange renders an auto-scaled sparkline framed by its
// minimum and maximum: 12▁▂▃▄▅▆▇█87.
func RenderSparklineWithRange(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	if width > 0 && width < len(data) {
		data = data[len(data)-width:]
	}
	lo, hi := bounds(data)
	return fmt.Sprintf("%.0f%s%.0f", lo, RenderSparkline(SparklineConfig{Data: data}), hi)
}
