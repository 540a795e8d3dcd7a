package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/model"
	"github.com/existflow/keepsession/internal/session"
)

// checkedMsg carries the result of the startup session check
type checkedMsg struct {
	state session.State
}

// stateChangedMsg is sent when the controller publishes a change
type stateChangedMsg struct{}

// expiredMsg is sent when the server rejects the session
type expiredMsg struct{}

type signInDoneMsg struct {
	err error
}

type signUpDoneMsg struct {
	resp *model.SignupResponse
	err  error
}

// Init starts the session check and the subscription listeners
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, m.checkSession(), m.waitForChange(), m.waitForExpiry())
}

func (m Model) checkSession() tea.Cmd {
	ctl := m.session
	return func() tea.Msg {
		return checkedMsg{state: ctl.CheckSession(context.Background())}
	}
}

// waitForChange listens for controller state signals
func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changed
		return stateChangedMsg{}
	}
}

// waitForExpiry listens for session expiry signals
func (m Model) waitForExpiry() tea.Cmd {
	return func() tea.Msg {
		<-m.expired
		return expiredMsg{}
	}
}

func (m Model) signIn(email, password string) tea.Cmd {
	ctl := m.session
	return func() tea.Msg {
		return signInDoneMsg{err: ctl.SignIn(context.Background(), email, password)}
	}
}

func (m Model) signUp(req model.SignupRequest) tea.Cmd {
	ctl := m.session
	return func() tea.Msg {
		resp, err := ctl.SignUp(context.Background(), req)
		return signUpDoneMsg{resp: resp, err: err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case checkedMsg:
		logger.Debug("Session check finished", logger.F("status", msg.state.Status))
		m.applyState(msg.state)
		return m, nil

	case stateChangedMsg:
		m.applyState(m.session.State())
		m.login = m.session.LoginState()
		return m, m.waitForChange()

	case expiredMsg:
		m.message = "Session expired. Please sign in again."
		m.applyState(m.session.State())
		return m, m.waitForExpiry()

	case signInDoneMsg:
		m.login = m.session.LoginState()
		if msg.err != nil {
			m.message = ""
			return m, nil
		}
		m.message = "Signed in"
		m.applyState(m.session.State())
		return m, nil

	case signUpDoneMsg:
		m.login = m.session.LoginState()
		if msg.err != nil {
			return m, nil
		}
		m.resetForm(ScreenLogin)
		m.inputs[fieldEmail].SetValue(msg.resp.Email)
		m.setFocus(fieldPassword)
		m.message = msg.resp.Message
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.ForceQ) {
			return m, tea.Quit
		}

		// Handle screen-specific input
		switch m.screen {
		case ScreenLogin, ScreenSignup:
			return m.updateForm(msg)
		case ScreenEditName:
			return m.updateEdit(msg)
		case ScreenProfile:
			return m.handleProfileKeys(msg)
		case ScreenChecking:
			if key.Matches(msg, keys.Quit) || key.Matches(msg, keys.Escape) {
				return m, tea.Quit
			}
		}
	}

	return m, nil
}

// applyState moves between screens to follow the session status
func (m *Model) applyState(st session.State) {
	m.state = st
	switch st.Status {
	case session.StatusAuthenticated:
		if m.screen == ScreenChecking || m.screen == ScreenLogin || m.screen == ScreenSignup {
			m.screen = ScreenProfile
		}
	case session.StatusUnauthenticated:
		if m.screen == ScreenChecking || m.screen == ScreenProfile || m.screen == ScreenEditName {
			m.resetForm(ScreenLogin)
		}
	}
}

// updateForm handles the sign-in and sign-up forms
func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		return m, tea.Quit

	case key.Matches(msg, keys.Switch):
		m.message = ""
		m.login = session.LoginState{}
		if m.screen == ScreenLogin {
			m.resetForm(ScreenSignup)
		} else {
			m.resetForm(ScreenLogin)
		}
		return m, nil

	case key.Matches(msg, keys.Next):
		m.setFocus(m.focus + 1)
		return m, nil

	case key.Matches(msg, keys.Prev):
		m.setFocus(m.focus - 1)
		return m, nil

	case key.Matches(msg, keys.Submit):
		if m.focus < m.fieldCount()-1 {
			m.setFocus(m.focus + 1)
			return m, nil
		}
		return m.submitForm()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	if m.login.Loading {
		return m, nil
	}

	email := strings.TrimSpace(m.inputs[fieldEmail].Value())
	password := m.inputs[fieldPassword].Value()
	if email == "" || password == "" {
		m.login = session.LoginState{Error: "Email and password are required"}
		return m, nil
	}

	m.message = ""
	if m.screen == ScreenSignup {
		m.login = session.LoginState{Loading: true, Status: "Creating account..."}
		return m, m.signUp(model.SignupRequest{
			Email:    email,
			Password: password,
			Name:     strings.TrimSpace(m.inputs[fieldName].Value()),
		})
	}

	m.login = session.LoginState{Loading: true, Status: "Signing in..."}
	return m, m.signIn(email, password)
}

// handleProfileKeys handles key presses on the profile screen
func (m Model) handleProfileKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Logout):
		logger.Info("Sign out requested from TUI")
		m.session.SignOut()
		m.applyState(m.session.State())
		m.message = "Signed out"
		return m, nil

	case key.Matches(msg, keys.Verify):
		m.message = "Verifying session..."
		return m, m.checkSession()

	case key.Matches(msg, keys.Edit):
		if m.state.User != nil {
			m.edit.SetValue(m.state.User.Name)
		}
		m.edit.CursorEnd()
		m.screen = ScreenEditName
		cmd := m.edit.Focus()
		return m, cmd
	}
	return m, nil
}

// updateEdit handles the name editor
func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.edit.Blur()
		m.screen = ScreenProfile
		return m, nil

	case key.Matches(msg, keys.Submit):
		name := strings.TrimSpace(m.edit.Value())
		m.edit.Blur()
		m.screen = ScreenProfile
		if name == "" {
			return m, nil
		}
		if _, err := m.session.UpdateUser(model.UserUpdate{Name: &name}); err != nil {
			m.message = "Update failed: " + err.Error()
			return m, nil
		}
		m.state = m.session.State()
		m.message = "Profile updated"
		return m, nil
	}

	var cmd tea.Cmd
	m.edit, cmd = m.edit.Update(msg)
	return m, cmd
}
