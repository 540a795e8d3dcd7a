package session

import (
	"context"
	"fmt"

	"github.com/existflow/keepsession/internal/api"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/model"
)

// SignIn exchanges credentials for a token. On success the token and user
// snapshot are persisted and the state becomes authenticated; on failure
// LoginState carries a displayable message.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	c.setLogin(LoginState{Loading: true, Status: "Signing in..."})

	resp, err := c.api.Login(ctx, email, password)
	if err != nil {
		c.setLogin(LoginState{Error: api.Message(err)})
		c.log.Info("Sign in failed", logger.F("email", email), logger.F("error", err))
		if api.IsUnreachable(err) {
			return fmt.Errorf("sign in: %w: %w", api.ErrServerUnreachable, err)
		}
		return fmt.Errorf("sign in: %w", err)
	}

	c.tokens.Save(resp.Token)
	c.cache.WriteSnapshot(resp.User)

	user := resp.User
	c.mu.Lock()
	c.gen++
	c.setLocked(State{Status: StatusAuthenticated, User: &user, Token: resp.Token})
	c.mu.Unlock()

	c.notify()
	c.setLogin(LoginState{})
	c.log.Info("Signed in", logger.F("user_id", user.ID))
	return nil
}

// SignUp creates an account. It does not sign the user in.
func (c *Controller) SignUp(ctx context.Context, req model.SignupRequest) (*model.SignupResponse, error) {
	c.setLogin(LoginState{Loading: true, Status: "Creating account..."})

	resp, err := c.api.Signup(ctx, req)
	if err != nil {
		c.setLogin(LoginState{Error: api.Message(err)})
		if api.IsUnreachable(err) {
			return nil, fmt.Errorf("sign up: %w: %w", api.ErrServerUnreachable, err)
		}
		return nil, fmt.Errorf("sign up: %w", err)
	}

	c.setLogin(LoginState{Status: resp.Message})
	c.log.Info("Account created", logger.F("email", resp.Email))
	return resp, nil
}

// SignOut ends the session locally and notifies the server in the
// background. It returns immediately; a failed notification is only logged.
func (c *Controller) SignOut() {
	tok := c.tokens.Get()
	c.tokens.Remove()
	c.cache.InvalidateAll()

	c.mu.Lock()
	c.gen++
	c.ended = true
	c.setLocked(State{Status: StatusUnauthenticated})
	c.login = LoginState{}
	c.mu.Unlock()
	c.notify()

	if tok == "" {
		return
	}
	c.background(func(ctx context.Context) {
		if err := c.api.Logout(ctx, tok); err != nil {
			c.log.Debug("Logout notification failed", logger.F("error", err))
		}
	})
}

// UpdateUser merges patch into the signed-in user and persists it to both
// cache tiers.
func (c *Controller) UpdateUser(patch model.UserUpdate) (model.User, error) {
	c.mu.Lock()
	if c.state.Status != StatusAuthenticated || c.state.User == nil {
		c.mu.Unlock()
		return model.User{}, ErrNotAuthenticated
	}

	merged := c.state.User.Merge(patch)
	c.cache.WriteSnapshot(merged)
	c.cache.WriteExtended(merged, c.state.Token)
	st := c.state
	st.User = &merged
	c.setLocked(st)
	c.mu.Unlock()

	c.notify()
	return merged, nil
}
