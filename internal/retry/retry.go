// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/metrics"
)

// Policy holds retry configuration for one kind of operation.
type Policy struct {
	// Name labels logs and metrics.
	Name string

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the wait before the first retry; it doubles per retry.
	BaseDelay time.Duration

	// MaxDelay caps a single wait.
	MaxDelay time.Duration

	// IsRetryable decides whether a failure is worth another attempt.
	// Nil means DefaultRetryable.
	IsRetryable func(error) bool
}

// DefaultPolicy returns the default retry settings
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Backoff returns the wait after the given zero-based failed attempt:
// min(BaseDelay * 2^attempt, MaxDelay).
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Executor runs operations under a Policy.
type Executor struct {
	sleep   SleepFunc
	metrics *metrics.Metrics
	log     *logger.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithSleep replaces the backoff wait, mainly for tests
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithMetrics counts retries on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an executor
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		sleep: sleepContext,
		log:   logger.Component("retry"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run calls op until it succeeds, the error is not retryable, MaxRetries is
// exhausted, or ctx is done. The last error is returned unchanged.
func (e *Executor) Run(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	retryable := p.IsRetryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}

		wait := p.Backoff(attempt)
		e.log.Debug("Operation failed, retrying",
			logger.F("op", p.Name),
			logger.F("attempt", attempt+1),
			logger.F("max_retries", p.MaxRetries),
			logger.F("backoff", wait),
			logger.F("error", err))
		e.metrics.Retry(p.Name)

		if serr := e.sleep(ctx, wait); serr != nil {
			return err
		}
	}
}

// Do is Run for operations that produce a value.
func Do[T any](ctx context.Context, e *Executor, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Run(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
