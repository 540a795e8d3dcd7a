package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/existflow/keepsession/internal/cache"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/metrics"
	"github.com/existflow/keepsession/internal/retry"
	"github.com/existflow/keepsession/internal/token"
	"golang.org/x/sync/singleflight"
)

// RefreshFunc exchanges a still-valid token for a new one.
type RefreshFunc func(ctx context.Context, tok string) (string, error)

const refreshKey = "refresh"

// Interceptor is an http.RoundTripper that attaches the stored bearer
// token, refreshes it in the background when it nears expiry, and purges the
// session when the server answers 401 or 403.
type Interceptor struct {
	base    http.RoundTripper
	tokens  *token.Store
	cache   *cache.Cache
	guard   *Guard
	refresh RefreshFunc
	timeout time.Duration
	metrics *metrics.Metrics
	log     *logger.Logger

	group singleflight.Group
	bg    sync.WaitGroup
}

// NewInterceptor wraps base. refresh must not route through the interceptor.
func NewInterceptor(base http.RoundTripper, tokens *token.Store, c *cache.Cache, guard *Guard, refresh RefreshFunc) *Interceptor {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Interceptor{
		base:    base,
		tokens:  tokens,
		cache:   c,
		guard:   guard,
		refresh: refresh,
		timeout: 15 * time.Second,
		log:     logger.Component("interceptor"),
	}
}

// RoundTrip implements http.RoundTripper. The response is always returned
// to the caller as received.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	var sent string
	if req.Header.Get("Authorization") == "" {
		if tok := i.tokens.Get(); tok != "" {
			sent = tok
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+tok)

			if i.tokens.IsNearExpiry() {
				i.refreshInBackground()
			}
		}
	}

	resp, err := i.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if sent != "" && IsAuthFailure(resp.StatusCode) {
		// A rejection of a token that has since been replaced says nothing
		// about the current session.
		if current := i.tokens.Get(); current != "" && current != sent {
			i.log.Debug("Rejected token already replaced",
				logger.F("status", resp.StatusCode), logger.F("path", req.URL.Path))
			return resp, nil
		}
		i.log.Warn("Authorization rejected, clearing session",
			logger.F("status", resp.StatusCode), logger.F("path", req.URL.Path))
		i.expire()
	}
	return resp, nil
}

// refreshInBackground joins or starts the shared refresh without waiting for
// it. The shared call is registered before returning so requests arriving
// while it runs never start another one.
func (i *Interceptor) refreshInBackground() {
	ch := i.group.DoChan(refreshKey, func() (any, error) {
		if !i.tokens.IsNearExpiry() {
			return i.tokens.Get(), nil
		}
		return i.doRefresh()
	})

	i.bg.Add(1)
	go func() {
		defer i.bg.Done()
		<-ch
	}()
}

// Refresh exchanges the stored token for a new one. Concurrent callers share
// a single network call and observe the same result; the shared call is
// forgotten once it settles, whatever the outcome.
func (i *Interceptor) Refresh(ctx context.Context) (string, error) {
	ch := i.group.DoChan(refreshKey, func() (any, error) {
		return i.doRefresh()
	})

	select {
	case res := <-ch:
		tok, _ := res.Val.(string)
		return tok, res.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (i *Interceptor) doRefresh() (string, error) {
	current := i.tokens.Get()
	if current == "" {
		return "", ErrNoToken
	}

	// Detached from callers; a caller's ctx only bounds its own wait.
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()

	next, err := i.refresh(ctx, current)
	switch {
	case err == nil && next != "":
		i.tokens.Save(next)
		i.metrics.Refresh("success")
		i.log.Info("Token refreshed")
		return next, nil

	case err == nil:
		i.metrics.Refresh("empty")
		i.log.Warn("Refresh returned no token, keeping current one")
		return current, nil

	case retry.IsAuthorization(err):
		i.metrics.Refresh("rejected")
		i.log.Warn("Refresh rejected, session is dead", logger.F("error", err))
		i.expire()
		return "", err

	default:
		i.metrics.Refresh("failed")
		i.log.Debug("Refresh abandoned", logger.F("error", err))
		return "", err
	}
}

func (i *Interceptor) expire() {
	i.tokens.Remove()
	i.cache.InvalidateAll()
	i.guard.Fire()
}

// Wait blocks until background refreshes started by RoundTrip have settled.
func (i *Interceptor) Wait() {
	i.bg.Wait()
}
