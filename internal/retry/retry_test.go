package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

// recordingSleep captures requested waits without sleeping.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func TestRun_RetriesServerErrorsWithBackoff(t *testing.T) {
	rec := &recordingSleep{}
	e := NewExecutor(WithSleep(rec.sleep))

	calls := 0
	err := e.Run(context.Background(), DefaultPolicy(), func(context.Context) error {
		calls++
		return statusErr(500)
	})

	require.Error(t, err)
	assert.Equal(t, 500, StatusOf(err))
	assert.Equal(t, 4, calls, "first attempt plus three retries")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.waits)
}

func TestRun_NeverRetriesAuthorization(t *testing.T) {
	for _, status := range []int{401, 403} {
		rec := &recordingSleep{}
		e := NewExecutor(WithSleep(rec.sleep))

		calls := 0
		p := DefaultPolicy()
		p.MaxRetries = 10
		err := e.Run(context.Background(), p, func(context.Context) error {
			calls++
			return statusErr(status)
		})

		assert.Equal(t, status, StatusOf(err))
		assert.Equal(t, 1, calls)
		assert.Empty(t, rec.waits)
	}
}

func TestRun_SucceedsAfterTransientFailures(t *testing.T) {
	e := NewExecutor(WithSleep(func(context.Context, time.Duration) error { return nil }))

	calls := 0
	v, err := Do(context.Background(), e, DefaultPolicy(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(errors.New("connection reset"))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := NewExecutor(WithSleep(sleepContext))

	calls := 0
	p := DefaultPolicy()
	p.BaseDelay = time.Hour
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, p, func(context.Context) error {
			calls++
			return statusErr(503)
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, 503, StatusOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop ignored cancellation")
	}
}

func TestRun_CustomClassifier(t *testing.T) {
	e := NewExecutor(WithSleep(func(context.Context, time.Duration) error { return nil }))

	calls := 0
	p := Policy{MaxRetries: 2, BaseDelay: time.Millisecond, IsRetryable: func(error) bool { return true }}
	_ = e.Run(context.Background(), p, func(context.Context) error {
		calls++
		return statusErr(400)
	})
	assert.Equal(t, 3, calls)
}

func TestBackoff_CapsAtMaxDelay(t *testing.T) {
	p := Policy{BaseDelay: 2 * time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, 2*time.Second, p.Backoff(0))
	assert.Equal(t, 4*time.Second, p.Backoff(1))
	assert.Equal(t, 5*time.Second, p.Backoff(2))
	assert.Equal(t, 5*time.Second, p.Backoff(30))
}

func TestDefaultRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unauthorized", statusErr(401), false},
		{"forbidden", fmt.Errorf("wrapped: %w", statusErr(403)), false},
		{"server error", statusErr(502), true},
		{"validation", statusErr(422), false},
		{"timeout", context.DeadlineExceeded, true},
		{"abort", context.Canceled, true},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"transient", Transient(errors.New("bad json")), true},
		{"permanent", Permanent(context.DeadlineExceeded), false},
		{"generic", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultRetryable(tt.err))
		})
	}
}
