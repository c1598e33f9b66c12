package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the dashboard key bindings.
// It implements the help.KeyMap interface for bubbles/help integration.
type keyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Raise   key.Binding
	Lower   key.Binding
	Quit    key.Binding
	Refresh key.Binding
	Help    key.Binding
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Help, k.Quit}
}

// FullHelp returns the expanded binding groups shown when help is toggled.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev},
		{k.Raise, k.Lower},
		{k.Refresh},
		{k.Help, k.Quit},
	}
}

var keys = keyMap{
	Next:    key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next metric")),
	Prev:    key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab", "previous metric")),
	Raise:   key.NewBinding(key.WithKeys("+", "=", "up", "k"), key.WithHelp("+", "raise threshold")),
	Lower:   key.NewBinding(key.WithKeys("-", "down", "j"), key.WithHelp("-", "lower threshold")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "clear history and re-probe")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Bindings lists every dashboard key binding in help order.
func Bindings() []key.Binding {
	var out []key.Binding
	for _, group := range keys.FullHelp() {
		out = append(out, group...)
	}
	return out
}
