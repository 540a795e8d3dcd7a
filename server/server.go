package server

import (
	"context"
	"net/http"
	"time"

	"github.com/existflow/keepsession/internal/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the reference auth API
type Server struct {
	store    Store
	echo     *echo.Echo
	tokenTTL time.Duration
	grace    time.Duration
	now      func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithTokenTTL overrides how long issued tokens stay valid
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// WithRefreshGrace sets how long a refreshed token keeps working
func WithRefreshGrace(d time.Duration) Option {
	return func(s *Server) { s.grace = d }
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server on top of store
func New(store Store, opts ...Option) *Server {
	s := &Server{
		store:    store,
		tokenTTL: 23 * time.Hour,
		grace:    time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(requestLogger)
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	e.GET("/health", s.handleHealth)

	auth := e.Group("/auth")

	// Public
	auth.POST("/signup", s.handleSignup)
	auth.POST("/login", s.handleLogin)

	// Protected
	protected := auth.Group("")
	protected.Use(s.authMiddleware)
	protected.GET("/me", s.handleMe)
	protected.POST("/refresh", s.handleRefresh)
	protected.POST("/logout", s.handleLogout)

	s.echo = e
}

// requestLogger logs every request through the application logger.
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()

		err := next(c)

		res := c.Response()
		logger.Info("HTTP Request",
			logger.F("method", req.Method),
			logger.F("uri", req.RequestURI),
			logger.F("status", res.Status),
			logger.F("size", res.Size),
			logger.F("request_id", res.Header().Get(echo.HeaderXRequestID)),
			logger.F("duration", time.Since(start).String()))

		return err
	}
}

// Close closes the backing store
func (s *Server) Close() error {
	return s.store.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
