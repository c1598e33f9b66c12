package tui

import (
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/host-pulse/display/widgets"
)

const (
	colorPrimary = lipgloss.Color("#7C3AED") // Purple
	colorText    = lipgloss.Color("#FFFFFF")
)

// Styles used throughout the TUI.
var (
	styleTitle   lipgloss.Style
	styleHeader  lipgloss.Style
	styleFooter  lipgloss.Style
	styleContent lipgloss.Style
	styleAlert   lipgloss.Style
	styleMuted   lipgloss.Style
)

func init() {
	styleTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorText).
		Background(colorPrimary).
		Padding(0, 2)

	styleHeader = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(widgets.ColorMuted).
		MarginBottom(1)

	styleFooter = lipgloss.NewStyle().
		Foreground(widgets.ColorMuted).
		MarginTop(1)

	styleContent = lipgloss.NewStyle().
		Padding(0, 1)

	styleAlert = lipgloss.NewStyle().
		Foreground(widgets.ColorCritical)

	styleMuted = lipgloss.NewStyle().
		Foreground(widgets.ColorMuted)
}
