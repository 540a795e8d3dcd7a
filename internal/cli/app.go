package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/existflow/keepsession/internal/api"
	"github.com/existflow/keepsession/internal/cache"
	"github.com/existflow/keepsession/internal/config"
	"github.com/existflow/keepsession/internal/health"
	"github.com/existflow/keepsession/internal/kv"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/metrics"
	"github.com/existflow/keepsession/internal/retry"
	"github.com/existflow/keepsession/internal/session"
	"github.com/existflow/keepsession/internal/token"
	"github.com/prometheus/client_golang/prometheus"
)

// settleTimeout bounds how long a command waits for background work
// (verification, logout notification) before exiting.
const settleTimeout = 5 * time.Second

// App is the wired session stack for one command invocation
type App struct {
	Config   *config.Config
	Store    *kv.SQLite
	Tokens   *token.Store
	Cache    *cache.Cache
	Health   *health.Monitor
	Registry *prometheus.Registry
	Client   *api.Client
	Session  *session.Controller
}

// openApp opens the session store and wires every component over it
func openApp(c *config.Config) (*App, error) {
	store, err := kv.Open(c.DBPath)
	if err != nil {
		logger.Error("Failed to open session store", logger.F("path", c.DBPath), logger.F("error", err))
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	tokens := token.New(store)
	sessionCache := cache.New(store)
	monitor := health.New(store, health.WithMetrics(m))
	guard := api.NewGuard()

	client := api.NewClient(api.Options{
		BaseURL:        c.ServerURL,
		Tokens:         tokens,
		Cache:          sessionCache,
		Guard:          guard,
		Health:         monitor,
		Metrics:        m,
		LoginTimeout:   c.LoginTimeout,
		RequestTimeout: c.RequestTimeout,
	})

	sessionCfg := session.DefaultConfig()
	sessionCfg.SafetyTimeout = c.SafetyTimeout

	ctl := session.New(client, tokens, sessionCache, guard,
		retry.NewExecutor(retry.WithMetrics(m)),
		session.WithConfig(sessionCfg),
		session.WithMetrics(m))

	return &App{
		Config:   c,
		Store:    store,
		Tokens:   tokens,
		Cache:    sessionCache,
		Health:   monitor,
		Registry: reg,
		Client:   client,
		Session:  ctl,
	}, nil
}

// Close waits briefly for background work, then releases the store
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	if err := a.Session.Settle(ctx); err != nil {
		logger.Warn("Background work still running at exit", logger.F("error", err))
	}
	a.Session.Close()
	a.Client.Interceptor().Wait()

	if err := a.Store.Close(); err != nil {
		logger.Warn("Failed to close session store", logger.F("error", err))
	}
	logger.Debug("Session store closed")
}
