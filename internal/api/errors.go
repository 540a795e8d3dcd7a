package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/existflow/keepsession/internal/retry"
)

var (
	// ErrServerUnreachable is reported when a call timed out, was aborted, or
	// never reached the server.
	ErrServerUnreachable = errors.New("server unreachable")
	// ErrMalformedResponse is reported when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNoToken is returned by authenticated operations without a stored token.
	ErrNoToken = errors.New("no stored token")
)

// StatusError is a non-2xx API response.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
}

// StatusCode implements retry.StatusCoder
func (e *StatusError) StatusCode() int { return e.Status }

// IsAuthFailure reports whether status means the session is dead.
func IsAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsUnreachable reports whether err is a timeout, abort, or connection failure.
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrServerUnreachable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Message returns the text that should be shown to a user for err.
func Message(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se) && se.Message != "":
		return se.Message
	case errors.As(err, &se) && se.Status >= http.StatusInternalServerError:
		return "The server is unavailable. Please try again later."
	case IsUnreachable(err):
		return "Unable to reach the server. Check your connection and try again."
	case errors.Is(err, ErrMalformedResponse):
		return "The server sent an unexpected response."
	default:
		return err.Error()
	}
}

// malformed wraps a decode failure as transient so it is retried.
func malformed(op string, err error) error {
	return retry.Transient(fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err))
}
