package session

import (
	"errors"

	"github.com/existflow/keepsession/internal/model"
)

// ErrNotAuthenticated is returned by operations that need a signed-in user
var ErrNotAuthenticated = errors.New("not authenticated")

// Status is the authentication state observed by the UI
type Status int

const (
	StatusInitializing Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is the in-memory session. The controller is its only writer.
type State struct {
	Status Status
	User   *model.User
	Token  string
}

// Authenticated reports whether a user is signed in
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// LoginState is the transient progress of an explicit sign-in or sign-up.
// It is independent of State so a spinner never flips the global status.
type LoginState struct {
	Loading bool
	Error   string
	Status  string
}
