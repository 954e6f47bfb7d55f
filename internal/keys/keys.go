// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// InspectorKeys are the bindings of the envelope inspector.
type InspectorKeys struct {
	Up             key.Binding
	Down           key.Binding
	Top            key.Binding
	Bottom         key.Binding
	Follow         key.Binding
	TogglePayloads key.Binding
	Refresh        key.Binding
	Clear          key.Binding
	Quit           key.Binding
}

// Inspector is the default inspector keymap.
var Inspector = InspectorKeys{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "scroll down"),
	),
	Top: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	Follow: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "follow"),
	),
	TogglePayloads: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "payloads"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "request status"),
	),
	Clear: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear log"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp returns the bindings shown in the footer.
func (k InspectorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Follow, k.TogglePayloads, k.Refresh, k.Clear, k.Quit}
}

// FullHelp returns every binding grouped by purpose.
func (k InspectorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.Follow},
		{k.TogglePayloads, k.Refresh, k.Clear, k.Quit},
	}
}
