package tui

import (
	"context"
	"errors"
	"net/http"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/keepsession/internal/api"
	"github.com/existflow/keepsession/internal/cache"
	"github.com/existflow/keepsession/internal/kv"
	"github.com/existflow/keepsession/internal/model"
	"github.com/existflow/keepsession/internal/retry"
	"github.com/existflow/keepsession/internal/session"
	"github.com/existflow/keepsession/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAPI struct {
	password string
}

func (s *stubAPI) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	if password != s.password {
		return nil, &api.StatusError{Op: "login", Status: http.StatusUnauthorized, Message: "invalid email or password"}
	}
	return &model.LoginResponse{Token: "tok", User: model.User{ID: "u1", Email: email, Name: "Ada"}}, nil
}

func (s *stubAPI) Signup(ctx context.Context, req model.SignupRequest) (*model.SignupResponse, error) {
	return &model.SignupResponse{Message: "Account created. Please log in.", Email: req.Email}, nil
}

func (s *stubAPI) Me(ctx context.Context) (*model.User, error) {
	return nil, errors.New("offline")
}

func (s *stubAPI) Logout(ctx context.Context, tok string) error { return nil }

func newTestModel(t *testing.T) Model {
	t.Helper()
	store := kv.NewMemory()
	ctl := session.New(&stubAPI{password: "correct horse"}, token.New(store), cache.New(store), api.NewGuard(), retry.NewExecutor())
	t.Cleanup(ctl.Close)

	m := NewModel(ctl, nil)
	return step(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

// run applies msg and then executes the returned command once, feeding its
// result back into the model.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	require.NotNil(t, cmd)
	return step(t, m, cmd())
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	return step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestModel_NoSessionShowsLogin(t *testing.T) {
	m := newTestModel(t)
	assert.Equal(t, ScreenChecking, m.screen)
	assert.Contains(t, m.View(), "Checking session")

	m = step(t, m, m.checkSession()())

	assert.Equal(t, ScreenLogin, m.screen)
	assert.Contains(t, m.View(), "Sign in")
}

func TestModel_SignInAndOut(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.checkSession()())

	m = typeText(t, m, "ada@example.com")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "correct horse")
	m = run(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Equal(t, ScreenProfile, m.screen)
	assert.Contains(t, m.View(), "Ada")
	assert.Equal(t, session.StatusAuthenticated, m.state.Status)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("L")})

	assert.Equal(t, ScreenLogin, m.screen)
	assert.Equal(t, "Signed out", m.message)
	assert.Equal(t, "ada@example.com", m.inputs[fieldEmail].Value(), "email is kept for the next sign-in")
}

func TestModel_SignInErrorIsShown(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.checkSession()())

	m = typeText(t, m, "ada@example.com")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "wrong")
	m = run(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, ScreenLogin, m.screen)
	assert.False(t, m.login.Loading)
	assert.Contains(t, m.View(), "invalid email or password")
}

func TestModel_EmptyFormIsRejectedLocally(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.checkSession()())
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	assert.Nil(t, cmd)
	assert.Equal(t, "Email and password are required", m.login.Error)
}

func TestModel_SignupReturnsToLogin(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.checkSession()())
	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	require.Equal(t, ScreenSignup, m.screen)

	m = typeText(t, m, "ada@example.com")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "correct horse")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "Ada")
	m = run(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, ScreenLogin, m.screen)
	assert.Equal(t, "Account created. Please log in.", m.message)
	assert.Equal(t, "ada@example.com", m.inputs[fieldEmail].Value())
	assert.Equal(t, fieldPassword, m.focus)
}

func TestModel_EditName(t *testing.T) {
	m := newTestModel(t)
	m = step(t, m, m.checkSession()())
	m = typeText(t, m, "ada@example.com")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "correct horse")
	m = run(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	require.Equal(t, ScreenEditName, m.screen)
	m = typeText(t, m, " Lovelace")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, ScreenProfile, m.screen)
	assert.Equal(t, "Ada Lovelace", m.state.User.Name)
	assert.Equal(t, "Ada Lovelace", m.session.State().User.Name)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
