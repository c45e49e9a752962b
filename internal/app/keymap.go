package app

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Highlight key.Binding
	Pan       key.Binding
	Finish    key.Binding
	Pause     key.Binding
	Export    key.Binding
	Inspector key.Binding
	Plugins   key.Binding
	Reload    key.Binding
	Errors    key.Binding
	Yank      key.Binding
	ScrollUp  key.Binding
	ScrollDn  key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Highlight: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "highlight mode")),
		Pan:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pan mode")),
		Finish:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "default mode")),
		Pause:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause input")),
		Export:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export copy")),
		Inspector: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "state inspector")),
		Plugins:   key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "plugins")),
		Reload:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "restart plugins")),
		Errors:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "last error")),
		Yank:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy error")),
		ScrollUp:  key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		ScrollDn:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Highlight, k.Pan, k.Export, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Highlight, k.Pan, k.Finish, k.Pause},
		{k.Export, k.Inspector, k.Plugins, k.Reload, k.Errors},
		{k.ScrollUp, k.ScrollDn, k.Help, k.Quit},
	}
}
