// Package kv is the durable key-value store that backs the session layer.
// Values survive restarts of the client but are local to one machine.
package kv

import (
	"errors"
	"sync"
)

// Keys used by the session layer. Every reader tolerates a missing or
// malformed neighbour, so each key can be cleared on its own.
const (
	KeyToken         = "keepsession.token"
	KeyTokenIssuedAt = "keepsession.token_issued_at"
	KeyUserSnapshot  = "keepsession.user"
	KeySessionCache  = "keepsession.session_cache"
	KeyServerHealth  = "keepsession.server_health"
)

// ErrUnavailable is returned by stores that cannot be reached at all.
var ErrUnavailable = errors.New("kv: store unavailable")

// Store is a synchronous string key-value store.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Delete is a no-op for missing keys.
	Delete(key string) error
}

// Memory is an in-process Store. Setting Err makes every call fail with it,
// which is how persistence failures are simulated.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
	Err    error
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.values, key)
	return nil
}

// SetErr swaps the injected failure.
func (m *Memory) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}

// Has reports whether key is present, ignoring any injected failure.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}
