package api

import "sync"

// Guard carries the logout callback registered by the session controller.
// It is shared by reference between the interceptor and the controller.
type Guard struct {
	mu       sync.Mutex
	onLogout func()
}

// NewGuard returns a Guard with no callback
func NewGuard() *Guard {
	return &Guard{}
}

// OnLogout registers fn, replacing any earlier callback.
func (g *Guard) OnLogout(fn func()) {
	g.mu.Lock()
	g.onLogout = fn
	g.mu.Unlock()
}

// Fire invokes the registered callback, if any.
func (g *Guard) Fire() {
	g.mu.Lock()
	fn := g.onLogout
	g.mu.Unlock()

	if fn != nil {
		fn()
	}
}
