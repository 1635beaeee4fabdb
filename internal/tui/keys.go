package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the keyboard shortcuts
type keyMap struct {
	Open      key.Binding
	Back      key.Binding
	Book      key.Binding
	Cancel    key.Binding
	Mine      key.Binding
	Admin     key.Binding
	New       key.Binding
	Edit      key.Binding
	Delete    key.Binding
	Attendees key.Binding
	Login     key.Binding
	Signup    key.Binding
	Refresh   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Open:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Book:      key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "book")),
		Cancel:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel booking")),
		Mine:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "my bookings")),
		Admin:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "admin")),
		New:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new event")),
		Edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:    key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete")),
		Attendees: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "attendees")),
		Login:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "login/logout")),
		Signup:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sign up")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Book, k.Cancel, k.Login, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Open, k.Back, k.Refresh},
		{k.Book, k.Cancel, k.Mine},
		{k.Admin, k.New, k.Edit, k.Delete, k.Attendees},
		{k.Login, k.Signup, k.Help, k.Quit},
	}
}
