package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the keyboard bindings of the saver.
type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "Quit"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh now"),
		),
	}
}
