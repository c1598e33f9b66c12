// Package widgets renders host-pulse metrics as terminal strings.
package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette shared by every widget.
var (
	ColorHealthy  = lipgloss.Color("#22C55E")
	ColorWarning  = lipgloss.Color("#EAB308")
	ColorCritical = lipgloss.Color("#EF4444")
	ColorMuted    = lipgloss.Color("#6B7280")
	ColorAccent   = lipgloss.Color("#06B6D4")
)

// TemperatureScale is the reading, in °C, that fills a temperature gauge.
const TemperatureScale = 70.0

// DefaultWarningMargin is how far below the threshold a bar turns yellow.
const DefaultWarningMargin = 10.0

// GaugeConfig controls the appearance of a horizontal bar gauge.
type GaugeConfig struct {
	// Width is the bar width in cells.
	Width int
	// Value is the reading in its own unit.
	Value float64
	// Scale is the reading that fills the bar (default 100).
	Scale float64
	// Unit is appended to the value text, "%" or "°C".
	Unit string
	// Label is optional text shown to the left of the bar.
	Label string
	// ShowValue appends the formatted reading after the bar.
	ShowValue bool
	// Threshold is the reading above which the bar is red. Zero means 90% of Scale.
	Threshold float64
	// WarningMargin is the distance below Threshold where the bar turns yellow.
	WarningMargin float64
	// FilledChar is the character for the filled portion (default "█").
	FilledChar string
	// EmptyChar is the character for the empty portion (default "░").
	EmptyChar string
}

// DefaultGaugeConfig returns a 20-cell percentage gauge.
func DefaultGaugeConfig() GaugeConfig {
	return GaugeConfig{
		Width:         20,
		Scale:         100,
		Unit:          "%",
		ShowValue:     true,
		WarningMargin: DefaultWarningMargin,
		FilledChar:    "█",
		EmptyChar:     "░",
	}
}

// LevelColor picks the bar color for value against threshold.
func LevelColor(value, threshold, margin float64) lipgloss.Color {
	switch {
	case value > threshold:
		return ColorCritical
	case value > threshold-margin:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// Fraction returns value/scale clamped to [0,1].
func Fraction(value, scale float64) float64 {
	if scale <= 0 {
		scale = 100
	}
	f := value / scale
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}

// RenderGauge renders [Label] [████████░░░░] [value].
func RenderGauge(cfg GaugeConfig) string {
	filledChar := cfg.FilledChar
	if filledChar == "" {
		filledChar = "█"
	}
	emptyChar := cfg.EmptyChar
	if emptyChar == "" {
		emptyChar = "░"
	}
	width := cfg.Width
	if width <= 0 {
		width = 20
	}
	scale := cfg.Scale
	if scale <= 0 {
		scale = 100
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 0.9 * scale
	}

	filled := int(math.Round(Fraction(cfg.Value, scale) * float64(width)))
	color := LevelColor(cfg.Value, threshold, cfg.WarningMargin)
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat(filledChar, filled)) +
		strings.Repeat(emptyChar, width-filled)

	var sb strings.Builder
	if cfg.Label != "" {
		sb.WriteString(cfg.Label)
		sb.WriteString(" ")
	}
	sb.WriteString(bar)
	if cfg.ShowValue {
		sb.WriteString(" ")
		sb.WriteString(FormatValue(cfg.Value, cfg.Unit))
	}
	return sb.String()
}

// RenderMiniGauge renders a bare percentage bar against threshold.
func RenderMiniGauge(percent, threshold float64, width int) string {
	return RenderGauge(GaugeConfig{
		Width:         width,
		Value:         percent,
		Scale:         100,
		Threshold:     threshold,
		WarningMargin: DefaultWarningMargin,
	})
}

// FormatValue renders a reading with one decimal, right-aligned to six cells.
func FormatValue(v float64, unit string) string {
	if unit == "" {
		unit = "%"
	}
	return fmt.Sprintf("%5.1f%s", v, unit)
}
