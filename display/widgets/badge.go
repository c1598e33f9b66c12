package widgets

import (
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/host-pulse/status"
)

// levelIcons maps each health level to its display icon.
var levelIcons = map[status.Level]string{
	status.LevelHealthy:  "\u25CF", // ● green dot
	status.LevelWarning:  "\u25CF", // ● yellow dot
	status.LevelCritical: "\u25CF", // ● red dot
	status.LevelUnknown:  "\u25CB", // ○ gray outline
}

// levelColors maps each health level to its display color.
var levelColors = map[status.Level]lipgloss.Color{
	status.LevelHealthy:  ColorHealthy,
	status.LevelWarning:  ColorWarning,
	status.LevelCritical: ColorCritical,
	status.LevelUnknown:  ColorMuted,
}

// ColorFor returns the palette color of a level.
func ColorFor(l status.Level) lipgloss.Color {
	if c, ok := levelColors[l]; ok {
		return c
	}
	return ColorMuted
}

// RenderBadge renders a colored dot followed by text. Empty text renders
// the level name.
func RenderBadge(l status.Level, text string) string {
	if text == "" {
		text = l.String()
	}
	icon, ok := levelIcons[l]
	if !ok {
		icon = levelIcons[status.LevelUnknown]
	}
	return lipgloss.NewStyle().Foreground(ColorFor(l)).Render(icon) + " " + text
}
