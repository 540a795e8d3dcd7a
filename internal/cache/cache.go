// Package cache keeps the two read-through tiers of the authenticated
// profile: an unexpiring snapshot that is always revalidated on use, and an
// extended entry (user + token) that is trusted for ExtendedTTL so a session
// survives a slow or briefly unreachable server.
package cache

import (
	"encoding/json"
	"time"

	"github.com/existflow/keepsession/internal/kv"
	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/model"
)

// ExtendedTTL bounds how long the extended tier is served.
const ExtendedTTL = 2 * time.Hour

// Entry is the extended tier record
type Entry struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	WrittenAt int64      `json:"written_at"` // unix millis
	ExpiresAt int64      `json:"expires_at"` // unix millis
}

// Expiry returns ExpiresAt as a time
func (e Entry) Expiry() time.Time {
	return time.UnixMilli(e.ExpiresAt)
}

// Cache owns both tiers. Storage errors and malformed records are logged and
// read as absent.
type Cache struct {
	kv  kv.Store
	now func() time.Time
	log *logger.Logger
}

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache over kv
func New(store kv.Store, opts ...Option) *Cache {
	c := &Cache{
		kv:  store,
		now: time.Now,
		log: logger.Component("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WriteSnapshot stores u as the last known profile.
func (c *Cache) WriteSnapshot(u model.User) {
	c.write(kv.KeyUserSnapshot, u)
}

// ReadSnapshot returns the last known profile.
func (c *Cache) ReadSnapshot() (*model.User, bool) {
	var u model.User
	if !c.read(kv.KeyUserSnapshot, &u) {
		return nil, false
	}
	return &u, true
}

// WriteExtended stores u and tok, valid for ExtendedTTL from now.
func (c *Cache) WriteExtended(u model.User, tok string) {
	now := c.now()
	c.write(kv.KeySessionCache, Entry{
		User:      u,
		Token:     tok,
		WrittenAt: now.UnixMilli(),
		ExpiresAt: now.Add(ExtendedTTL).UnixMilli(),
	})
}

// ReadExtended returns the extended entry. An entry read after its expiry is
// purged and reported as absent.
func (c *Cache) ReadExtended() (*Entry, bool) {
	var e Entry
	if !c.read(kv.KeySessionCache, &e) {
		return nil, false
	}
	if e.Token == "" || e.ExpiresAt == 0 {
		c.log.Warn("Discarding incomplete extended cache entry")
		c.delete(kv.KeySessionCache)
		return nil, false
	}
	if c.now().UnixMilli() > e.ExpiresAt {
		c.log.Debug("Extended cache entry expired", logger.F("expired_at", e.Expiry()))
		c.delete(kv.KeySessionCache)
		return nil, false
	}
	return &e, true
}

// InvalidateAll removes both tiers.
func (c *Cache) InvalidateAll() {
	c.delete(kv.KeyUserSnapshot)
	c.delete(kv.KeySessionCache)
}

func (c *Cache) write(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("Failed to encode cache entry", logger.F("key", key), logger.F("error", err))
		return
	}
	if err := c.kv.Set(key, string(data)); err != nil {
		c.log.Warn("Failed to write cache entry", logger.F("key", key), logger.F("error", err))
	}
}

func (c *Cache) read(key string, v any) bool {
	raw, ok, err := c.kv.Get(key)
	if err != nil {
		c.log.Warn("Failed to read cache entry", logger.F("key", key), logger.F("error", err))
		return false
	}
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		c.log.Warn("Malformed cache entry", logger.F("key", key), logger.F("error", err))
		return false
	}
	return true
}

func (c *Cache) delete(key string) {
	if err := c.kv.Delete(key); err != nil {
		c.log.Warn("Failed to delete cache entry", logger.F("key", key), logger.F("error", err))
	}
}
