// Package token persists the bearer credential and enforces its lifetime.
package token

import (
	"strconv"
	"time"

	"github.com/existflow/keepsession/internal/kv"
	"github.com/existflow/keepsession/internal/logger"
)

const (
	// TTL is how long a token is trusted after it was issued.
	TTL = 23 * time.Hour
	// RefreshWindow is how long before TTL a token counts as near expiry.
	RefreshWindow = time.Hour
)

// Store owns the persisted bearer token and its issuance timestamp.
// Persistence failures are logged and read as "no token".
type Store struct {
	kv  kv.Store
	now func() time.Time
	log *logger.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a token store over kv
func New(store kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:  store,
		now: time.Now,
		log: logger.Component("token"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists tok together with the current time. The timestamp is
// written first so a concurrent reader never pairs the new token with the
// old token's age.
func (s *Store) Save(tok string) {
	issued := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.kv.Set(kv.KeyTokenIssuedAt, issued); err != nil {
		s.log.Warn("Failed to persist token timestamp", logger.F("error", err))
		return
	}
	if err := s.kv.Set(kv.KeyToken, tok); err != nil {
		s.log.Warn("Failed to persist token", logger.F("error", err))
	}
}

// Get returns the stored token, or "" when none is stored or it has outlived
// TTL. An expired token is purged on the read that notices it.
func (s *Store) Get() string {
	tok, age, ok := s.load()
	if !ok {
		return ""
	}
	if age > TTL {
		s.log.Info("Stored token expired", logger.F("age", age.Round(time.Second)))
		s.Remove()
		return ""
	}
	return tok
}

// IsNearExpiry reports whether the token is within RefreshWindow of TTL.
func (s *Store) IsNearExpiry() bool {
	_, age, ok := s.load()
	return ok && age > TTL-RefreshWindow
}

// Age returns how long ago the current token was issued
func (s *Store) Age() (time.Duration, bool) {
	_, age, ok := s.load()
	return age, ok
}

// Remove deletes both entries. It is idempotent and never fails.
func (s *Store) Remove() {
	if err := s.kv.Delete(kv.KeyToken); err != nil {
		s.log.Warn("Failed to delete token", logger.F("error", err))
	}
	if err := s.kv.Delete(kv.KeyTokenIssuedAt); err != nil {
		s.log.Warn("Failed to delete token timestamp", logger.F("error", err))
	}
}

func (s *Store) load() (string, time.Duration, bool) {
	tok, ok, err := s.kv.Get(kv.KeyToken)
	if err != nil {
		s.log.Warn("Failed to read token", logger.F("error", err))
		return "", 0, false
	}
	if !ok || tok == "" {
		return "", 0, false
	}

	raw, ok, err := s.kv.Get(kv.KeyTokenIssuedAt)
	if err != nil {
		s.log.Warn("Failed to read token timestamp", logger.F("error", err))
		return "", 0, false
	}
	if !ok {
		return "", 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.log.Warn("Malformed token timestamp", logger.F("value", raw))
		return "", 0, false
	}

	return tok, s.now().Sub(time.UnixMilli(ms)), true
}
