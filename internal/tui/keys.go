package tui

import "github.com/charmbracelet/bubbles/key"

// globalKeyMap is active whenever no text input has focus.
type globalKeyMap struct {
	Next     key.Binding
	Prev     key.Binding
	Jump     key.Binding
	Refresh  key.Binding
	Password key.Binding
	Logout   key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func (k globalKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Jump, k.Refresh, k.Help, k.Quit}
}

func (k globalKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Jump},
		{k.Refresh, k.Password, k.Logout},
		{k.Help, k.Quit},
	}
}

func newGlobalKeys() globalKeyMap {
	return globalKeyMap{
		Next:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next view")),
		Prev:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "previous view")),
		Jump:     key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8"), key.WithHelp("1-8", "jump to view")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Password: key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "change password")),
		Logout:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// slotKeyMap drives the connectivity views.
type slotKeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Connect   key.Binding
	Configure key.Binding
	Back      key.Binding
}

func (k slotKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Connect, k.Configure, k.Back}
}

func (k slotKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, {k.Connect, k.Configure, k.Back}}
}

func newSlotKeys() slotKeyMap {
	return slotKeyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Connect:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
		Configure: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "configure")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
}

// formKeyMap is active while a form has focus.
type formKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Cancel key.Binding
}

func (k formKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Submit, k.Cancel}
}

func (k formKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev}, {k.Submit, k.Cancel}}
}

func newFormKeys() formKeyMap {
	return formKeyMap{
		Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}
