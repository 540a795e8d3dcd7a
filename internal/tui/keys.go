package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all key bindings
type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Switch key.Binding
	Edit   key.Binding
	Verify key.Binding
	Logout key.Binding
	Escape key.Binding
	Quit   key.Binding
	ForceQ key.Binding
}

var keys = keyMap{
	Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
	Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "prev field")),
	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	Switch: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "sign in/sign up")),
	Edit:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit name")),
	Verify: key.NewBinding(key.WithKeys("r", "R"), key.WithHelp("r", "verify session")),
	Logout: key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
	Escape: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Quit:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
	ForceQ: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}
