package session

import (
	"context"
	"time"

	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/model"
	"github.com/existflow/keepsession/internal/retry"
)

// CheckSession resolves the startup state and returns it. It never blocks
// longer than the safety timeout; verification of a cached session keeps
// running in the background and may update the state later.
func (c *Controller) CheckSession(ctx context.Context) State {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	tok := c.tokens.Get()
	if tok == "" {
		c.log.Debug("No stored token")
		c.resolve(gen, State{Status: StatusUnauthenticated})
		return c.State()
	}

	if entry, ok := c.cache.ReadExtended(); ok {
		c.log.Info("Session restored from extended cache",
			logger.F("user_id", entry.User.ID), logger.F("expires_at", entry.Expiry()))
		user := entry.User
		c.resolve(gen, State{Status: StatusAuthenticated, User: &user, Token: tok})
		c.background(func(ctx context.Context) {
			c.revalidate(ctx, gen, tok, c.cfg.ExtendedPolicy, nil)
		})
		return c.State()
	}

	if snap, ok := c.cache.ReadSnapshot(); ok {
		c.log.Info("Session restored from snapshot", logger.F("user_id", snap.ID))
		c.resolve(gen, State{Status: StatusAuthenticated, User: snap, Token: tok})
		snapshot := *snap
		c.background(func(ctx context.Context) {
			c.revalidate(ctx, gen, tok, c.cfg.SnapshotPolicy, &snapshot)
		})
		return c.State()
	}

	done := make(chan struct{})
	c.background(func(ctx context.Context) {
		defer close(done)
		c.verify(ctx, gen, tok)
	})

	timer := time.NewTimer(c.cfg.SafetyTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		if c.resolvePending(gen, State{Status: StatusUnauthenticated}) {
			c.log.Warn("Session check exceeded safety timeout",
				logger.F("timeout", c.cfg.SafetyTimeout))
		}
	case <-ctx.Done():
		c.resolvePending(gen, State{Status: StatusUnauthenticated})
	}
	return c.State()
}

// verify is the blocking tier: no cached user is available, so the session
// is only authenticated once the server confirms it.
func (c *Controller) verify(ctx context.Context, gen uint64, tok string) {
	user, err := retry.Do(ctx, c.retry, c.cfg.FullPolicy, c.api.Me)
	switch {
	case err == nil:
		c.applyVerified(gen, *user)
	case retry.IsAuthorization(err) && !c.rotated(tok):
		c.log.Info("Stored token rejected by server")
		c.handleAuthFailure()
	default:
		// The token is kept so a later start can try again.
		c.log.Warn("Session verification failed", logger.F("error", err))
		c.resolvePending(gen, State{Status: StatusUnauthenticated})
	}
}

// revalidate confirms a session that was resolved from cache. On a
// transient failure the cached session stands; a snapshot-tier session is
// also promoted to the extended tier so the next start can skip the wait.
func (c *Controller) revalidate(ctx context.Context, gen uint64, tok string, p retry.Policy, snapshot *model.User) {
	user, err := retry.Do(ctx, c.retry, p, c.api.Me)
	switch {
	case err == nil:
		c.applyVerified(gen, *user)
	case retry.IsAuthorization(err) && !c.rotated(tok):
		c.log.Info("Cached session rejected by server")
		c.handleAuthFailure()
	case ctx.Err() != nil:
	default:
		c.log.Warn("Background verification failed, keeping cached session",
			logger.F("policy", p.Name), logger.F("error", err))
		if snapshot != nil {
			if current, ok := c.current(gen); ok {
				c.cache.WriteExtended(*snapshot, current)
			}
		}
	}
}

// applyVerified installs a server-confirmed user unless the session has
// changed or been purged since the check started.
func (c *Controller) applyVerified(gen uint64, user model.User) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Debug("Dropping stale verification result")
		return
	}
	tok := c.tokens.Get()
	if tok == "" {
		c.mu.Unlock()
		c.log.Debug("Token purged during verification")
		return
	}
	c.cache.WriteSnapshot(user)
	c.cache.WriteExtended(user, tok)
	c.setLocked(State{Status: StatusAuthenticated, User: &user, Token: tok})
	c.mu.Unlock()

	c.notify()
}

// resolve sets st if gen is still current.
func (c *Controller) resolve(gen uint64, st State) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.setLocked(st)
	c.mu.Unlock()

	c.notify()
	return true
}

// resolvePending sets st only if the state is still initializing.
func (c *Controller) resolvePending(gen uint64, st State) bool {
	c.mu.Lock()
	if gen != c.gen || c.state.Status != StatusInitializing {
		c.mu.Unlock()
		return false
	}
	c.setLocked(st)
	c.mu.Unlock()

	c.notify()
	return true
}

// current returns the stored token if gen is still current.
func (c *Controller) current(gen uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return "", false
	}
	tok := c.tokens.Get()
	return tok, tok != ""
}

// rotated reports whether the stored token has been replaced since tok was
// sent. A rejection of tok then says nothing about the session.
func (c *Controller) rotated(tok string) bool {
	current := c.tokens.Get()
	if current != "" && current != tok {
		c.log.Debug("Rejected token already replaced")
		return true
	}
	return false
}

// handleAuthFailure is the guard's logout callback. It purges persisted
// state and ends the session once; later calls before the next sign-in
// are no-ops.
func (c *Controller) handleAuthFailure() {
	c.tokens.Remove()
	c.cache.InvalidateAll()

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.gen++
	c.setLocked(State{Status: StatusUnauthenticated})
	expired := make([]func(), 0, len(c.expired))
	for _, fn := range c.expired {
		expired = append(expired, fn)
	}
	c.mu.Unlock()

	c.log.Warn("Session expired")
	c.notify()
	for _, fn := range expired {
		fn()
	}
}
