// Package api is the HTTP client for the auth API: login, signup, who-am-i,
// refresh, and logout.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/existflow/keepsession/internal/cache"
	"github.com/existflow/keepsession/internal/health"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/metrics"
	"github.com/existflow/keepsession/internal/model"
	"github.com/existflow/keepsession/internal/token"
	"github.com/google/uuid"
)

// Options wires a Client
type Options struct {
	BaseURL string

	Tokens  *token.Store
	Cache   *cache.Cache
	Guard   *Guard
	Health  *health.Monitor
	Metrics *metrics.Metrics

	// Transport is the underlying transport; nil means http.DefaultTransport.
	Transport http.RoundTripper

	// LoginTimeout bounds login and signup. They are never retried.
	LoginTimeout time.Duration
	// RequestTimeout is the base for the adaptive timeout of other calls.
	RequestTimeout time.Duration
}

// Client talks to the auth API
type Client struct {
	baseURL        string
	public         *http.Client
	authed         *http.Client
	interceptor    *Interceptor
	health         *health.Monitor
	metrics        *metrics.Metrics
	loginTimeout   time.Duration
	requestTimeout time.Duration
	log            *logger.Logger
}

// NewClient creates a client. Tokens, Cache, Guard and Health are required.
func NewClient(opts Options) *Client {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 10 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		public:         &http.Client{Transport: base},
		health:         opts.Health,
		metrics:        opts.Metrics,
		loginTimeout:   opts.LoginTimeout,
		requestTimeout: opts.RequestTimeout,
		log:            logger.Component("api"),
	}

	c.interceptor = NewInterceptor(base, opts.Tokens, opts.Cache, opts.Guard, c.Refresh)
	c.interceptor.metrics = opts.Metrics
	c.interceptor.timeout = opts.RequestTimeout
	c.authed = &http.Client{Transport: c.interceptor}

	return c
}

// Interceptor returns the interceptor used for authenticated calls
func (c *Client) Interceptor() *Interceptor {
	return c.interceptor
}

// Login authenticates with email and password. Single attempt, short timeout.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.loginTimeout)
	defer cancel()

	var out model.LoginResponse
	err := c.do(ctx, c.public, "login", http.MethodPost, "/auth/login", "",
		model.Credentials{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, malformed("login", errors.New("missing token"))
	}
	return &out, nil
}

// Signup creates an account. No token is issued.
func (c *Client) Signup(ctx context.Context, req model.SignupRequest) (*model.SignupResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.loginTimeout)
	defer cancel()

	var out model.SignupResponse
	if err := c.do(ctx, c.public, "signup", http.MethodPost, "/auth/signup", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile of the stored token's owner, bounded by the
// adaptive timeout.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.health.AdaptiveTimeout(c.requestTimeout))
	defer cancel()

	var out model.MeResponse
	if err := c.do(ctx, c.authed, "me", http.MethodGet, "/auth/me", "", nil, &out); err != nil {
		return nil, err
	}
	if out.User.ID == "" && out.User.Email == "" {
		return nil, malformed("me", errors.New("missing user"))
	}
	return &out.User, nil
}

// Refresh exchanges tok for a new token. It bypasses the interceptor. An
// empty result with a nil error means the server sent no token.
func (c *Client) Refresh(ctx context.Context, tok string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.health.AdaptiveTimeout(c.requestTimeout))
	defer cancel()

	var out model.RefreshResponse
	if err := c.do(ctx, c.public, "refresh", http.MethodPost, "/auth/refresh", tok, nil, &out); err != nil {
		var se *StatusError
		if errors.As(err, &se) || !errors.Is(err, ErrMalformedResponse) {
			return "", err
		}
		// A body we cannot read still leaves the current token usable.
		c.log.Warn("Unreadable refresh response", logger.F("error", err))
		return "", nil
	}
	return out.BearerToken(), nil
}

// Logout tells the server to revoke tok. It bypasses the interceptor so a
// rejection cannot touch a session that was started after tok was dropped.
func (c *Client) Logout(ctx context.Context, tok string) error {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	return c.do(ctx, c.public, "logout", http.MethodPost, "/auth/logout", tok, nil, nil)
}

func (c *Client) do(ctx context.Context, hc *http.Client, op, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// A timeout is a latency observation too.
			c.health.RecordSample(elapsed)
		}
		c.metrics.ObserveRequest(op, "error", elapsed)
		c.log.Debug("Request failed", logger.F("op", op), logger.F("elapsed", elapsed), logger.F("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.health.RecordSample(elapsed)
	c.metrics.ObserveRequest(op, outcome(resp.StatusCode), elapsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(op, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return malformed(op, err)
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	se := &StatusError{Op: op, Status: resp.StatusCode}
	var body model.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil {
		se.Message = body.Text()
	} else if text := strings.TrimSpace(string(data)); text != "" && len(text) < 512 {
		se.Message = text
	}
	return se
}

func outcome(status int) string {
	switch {
	case status < 300:
		return "ok"
	case IsAuthFailure(status):
		return "unauthorized"
	case status >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}
