package widgets

import (
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/status"
)

// CardConfig describes one metric card.
type CardConfig struct {
	Metric collectors.Metric
	// Title overrides the metric label, e.g. "Disk (/)".
	Title string
	// Displayed is the animated value; Available false renders "n/a".
	Displayed float64
	Available bool
	Threshold float64
	Level     status.Level
	// History feeds the sparkline row. Nil hides it.
	History []float64
	Width   int
	// Selected marks the card whose threshold the keys adjust.
	Selected bool
}

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1)
	cardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	cardValueStyle = lipgloss.NewStyle().Bold(true)
	cardHintStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
)

// scaleFor returns the reading that fills a metric's bar.
func scaleFor(m collectors.Metric) float64 {
	if m.IsPercent() {
		return 100
	}
	return TemperatureScale
}

// RenderCard renders a bordered card: title, value, bar, threshold hint and
// an optional sparkline.
func RenderCard(cfg CardConfig) string {
	width := cfg.Width
	if width < 16 {
		width = 16
	}
	inner := width - 4

	title := cfg.Title
	if title == "" {
		title = cfg.Metric.Label()
	}

	if cfg.Selected {
		title = "▸ " + title
	}
	lines := []string{cardTitleStyle.Render(title)}

	if !cfg.Available {
		lines = append(lines,
			cardValueStyle.Foreground(ColorMuted).Render("n/a"),
			cardHintStyle.Render(strings.Repeat("░", inner)),
			RenderBadge(status.LevelUnknown, "not available"),
		)
		return cardStyle.Width(width - 2).BorderForeground(ColorMuted).Render(strings.Join(lines, "\n"))
	}

	color := ColorFor(cfg.Level)
	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithoutPercentage(),
		progress.WithWidth(inner),
	)

	lines = append(lines,
		cardValueStyle.Foreground(color).Render(strings.TrimSpace(FormatValue(cfg.Displayed, cfg.Metric.Unit()))),
		bar.ViewAs(Fraction(cfg.Displayed, scaleFor(cfg.Metric))),
		cardHintStyle.Render("alert > "+strings.TrimSpace(FormatValue(cfg.Threshold, cfg.Metric.Unit()))),
	)
	if cfg.History != nil {
		var trend string
		if cfg.Metric.IsPercent() {
			spark := PercentScale(cfg.History, inner)
			spark.Color = ColorAccent
			trend = RenderSparkline(spark)
		} else {
			// Temperatures have no fixed range, so frame the trend by its extremes.
			trend = cardHintStyle.Render(RenderSparklineWithRange(cfg.History, inner-6))
		}
		lines = append(lines, trend)
	}

	return cardStyle.Width(width - 2).BorderForeground(color).Render(strings.Join(lines, "\n"))
}
