package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/existflow/keepsession/internal/health"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/session"
)

// Screen is the view currently shown
type Screen int

const (
	ScreenChecking Screen = iota
	ScreenLogin
	ScreenSignup
	ScreenProfile
	ScreenEditName
)

// Form fields. Login uses the first two; signup uses all three.
const (
	fieldEmail = iota
	fieldPassword
	fieldName
)

// Model is the main TUI model
type Model struct {
	session *session.Controller
	health  *health.Monitor // optional

	// changed is signalled by controller subscriptions. It is buffered to
	// one slot so bursts coalesce; the handler always reads the latest state.
	changed chan struct{}
	expired chan struct{}

	// UI state
	width   int
	height  int
	screen  Screen
	state   session.State
	login   session.LoginState
	spinner spinner.Model

	// Input
	inputs []textinput.Model
	focus  int
	edit   textinput.Model

	message string
}

// NewModel creates a new TUI model bound to ctl. monitor may be nil.
func NewModel(ctl *session.Controller, monitor *health.Monitor) Model {
	logger.Info("Initializing TUI model")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 256
	email.Width = 40
	email.Prompt = "Email    "

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 256
	password.Width = 40
	password.Prompt = "Password "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	name := textinput.New()
	name.Placeholder = "Ada Lovelace"
	name.CharLimit = 128
	name.Width = 40
	name.Prompt = "Name     "

	edit := textinput.New()
	edit.CharLimit = 128
	edit.Width = 40

	m := Model{
		session: ctl,
		health:  monitor,
		changed: make(chan struct{}, 1), // Buffered to avoid blocking
		expired: make(chan struct{}, 1),
		screen:  ScreenChecking,
		spinner: sp,
		inputs:  []textinput.Model{email, password, name},
		edit:    edit,
	}

	signal := func(ch chan struct{}) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	ctl.Subscribe(func(session.State) { signal(m.changed) })
	ctl.SubscribeLogin(func(session.LoginState) { signal(m.changed) })
	ctl.OnSessionExpired(func() { signal(m.expired) })

	return m
}

// fieldCount is the number of form fields on the current screen
func (m Model) fieldCount() int {
	if m.screen == ScreenSignup {
		return 3
	}
	return 2
}

func (m *Model) setFocus(i int) {
	n := m.fieldCount()
	m.focus = (i%n + n) % n
	for j := range m.inputs {
		if j == m.focus {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func (m *Model) resetForm(screen Screen) {
	m.screen = screen
	for i := range m.inputs {
		if i != fieldEmail {
			m.inputs[i].SetValue("")
		}
	}
	m.setFocus(fieldEmail)
}
