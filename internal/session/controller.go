// Package session resolves and maintains the signed-in state of the client.
//
// On startup CheckSession picks the best available source, in order: no
// token, the extended cache tier, the snapshot tier, and finally a blocking
// who-am-i call. The cache tiers resolve immediately and are verified
// against the server in the background. Whatever happens on the network,
// CheckSession returns within the safety timeout.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/existflow/keepsession/internal/api"
	"github.com/existflow/keepsession/internal/cache"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/metrics"
	"github.com/existflow/keepsession/internal/model"
	"github.com/existflow/keepsession/internal/retry"
	"github.com/existflow/keepsession/internal/token"
)

// AuthAPI is the subset of the auth API the controller drives.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*model.LoginResponse, error)
	Signup(ctx context.Context, req model.SignupRequest) (*model.SignupResponse, error)
	Me(ctx context.Context) (*model.User, error)
	Logout(ctx context.Context, tok string) error
}

// Config holds the controller's timing and retry settings
type Config struct {
	// SafetyTimeout bounds how long CheckSession may stay initializing.
	SafetyTimeout time.Duration

	// ExtendedPolicy verifies a session resolved from the extended tier.
	ExtendedPolicy retry.Policy
	// SnapshotPolicy verifies a session resolved from the snapshot tier.
	SnapshotPolicy retry.Policy
	// FullPolicy is used when no cache tier is available.
	FullPolicy retry.Policy
}

// DefaultConfig returns the default controller settings
func DefaultConfig() Config {
	return Config{
		SafetyTimeout: 2 * time.Second,
		ExtendedPolicy: retry.Policy{
			Name: "whoami-extended", MaxRetries: 2, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second,
		},
		SnapshotPolicy: retry.Policy{
			Name: "whoami-snapshot", MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second,
		},
		FullPolicy: retry.Policy{
			Name: "whoami", MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second,
		},
	}
}

// Option configures a Controller
type Option func(*Controller)

// WithConfig replaces the default settings
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithMetrics counts state transitions on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller owns the in-memory session state.
type Controller struct {
	api     AuthAPI
	tokens  *token.Store
	cache   *cache.Cache
	retry   *retry.Executor
	cfg     Config
	metrics *metrics.Metrics
	log     *logger.Logger

	mu    sync.Mutex
	state State
	login LoginState
	// gen is bumped whenever the session identity changes (sign-in,
	// sign-out, expiry). Background results from an older gen are dropped.
	gen uint64
	// ended suppresses repeated expiry handling until the next sign-in.
	ended bool

	subs      map[int]func(State)
	loginSubs map[int]func(LoginState)
	expired   map[int]func()
	nextSub   int
	notifyMu  sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller and registers it as guard's logout callback.
func New(a AuthAPI, tokens *token.Store, c *cache.Cache, guard *api.Guard, exec *retry.Executor, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	ctl := &Controller{
		api:       a,
		tokens:    tokens,
		cache:     c,
		retry:     exec,
		cfg:       DefaultConfig(),
		log:       logger.Component("session"),
		subs:      make(map[int]func(State)),
		loginSubs: make(map[int]func(LoginState)),
		expired:   make(map[int]func()),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(ctl)
	}

	guard.OnLogout(ctl.handleAuthFailure)
	return ctl
}

// State returns a copy of the current session state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyState()
}

func (c *Controller) copyState() State {
	st := c.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// LoginState returns the current sign-in progress
func (c *Controller) LoginState() LoginState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login
}

// Subscribe calls fn with the latest state after every change. fn must not
// call Subscribe or a state-changing method synchronously.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// SubscribeLogin calls fn after every LoginState change.
func (c *Controller) SubscribeLogin(fn func(LoginState)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.loginSubs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.loginSubs, id)
		c.mu.Unlock()
	}
}

// OnSessionExpired calls fn once per confirmed authorization failure.
func (c *Controller) OnSessionExpired(fn func()) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.expired[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.expired, id)
		c.mu.Unlock()
	}
}

// setLocked replaces the state. Callers hold c.mu and call notify after
// releasing it.
func (c *Controller) setLocked(st State) {
	if st.Status != c.state.Status {
		c.log.Info("Session state changed",
			logger.F("from", c.state.Status), logger.F("to", st.Status))
		c.metrics.Transition(st.Status.String())
	}
	if st.Status == StatusAuthenticated {
		c.ended = false
	}
	c.state = st
}

// notify delivers the latest state. Deliveries are serialised, so the last
// call every subscriber sees carries the current state.
func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	st := c.copyState()
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

func (c *Controller) setLogin(ls LoginState) {
	c.mu.Lock()
	c.login = ls
	subs := make([]func(LoginState), 0, len(c.loginSubs))
	for _, fn := range c.loginSubs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(ls)
	}
}

// background runs fn on its own goroutine, bound to the controller's lifetime.
func (c *Controller) background(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

// Settle waits until background verification and logout notifications
// have finished, or ctx is done.
func (c *Controller) Settle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels background work and waits for it to stop.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}
