package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/existflow/keepsession/internal/model"
)

var (
	// ErrNotFound is returned when a user or session does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an email is already registered
	ErrConflict = errors.New("already exists")
)

// Store persists accounts and bearer sessions
type Store interface {
	CreateUser(ctx context.Context, u model.User, passwordHash string) error
	UserByEmail(ctx context.Context, email string) (*model.User, string, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
	CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error
	// SessionUser returns the owner of token and when the session expires.
	SessionUser(ctx context.Context, token string) (string, time.Time, error)
	// ShortenSession lowers the expiry of token to at unless it is already
	// earlier.
	ShortenSession(ctx context.Context, token string, at time.Time) error
	DeleteSession(ctx context.Context, token string) error
	Close() error
}

type memoryUser struct {
	user model.User
	hash string
}

type memorySession struct {
	userID    string
	expiresAt time.Time
}

// MemoryStore keeps everything in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*memoryUser // by id
	byEmail  map[string]string      // email -> id
	sessions map[string]memorySession
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*memoryUser),
		byEmail:  make(map[string]string),
		sessions: make(map[string]memorySession),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u model.User, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return ErrConflict
	}
	s.users[u.ID] = &memoryUser{user: u, hash: passwordHash}
	s.byEmail[email] = u.ID
	return nil
}

func (s *MemoryStore) UserByEmail(_ context.Context, email string) (*model.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, "", ErrNotFound
	}
	mu := s.users[id]
	u := mu.user
	return &u, mu.hash, nil
}

func (s *MemoryStore) UserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mu, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := mu.user
	return &u, nil
}

func (s *MemoryStore) CreateSession(_ context.Context, token, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memorySession{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) SessionUser(_ context.Context, token string) (string, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return "", time.Time{}, ErrNotFound
	}
	return sess.userID, sess.expiresAt, nil
}

func (s *MemoryStore) ShortenSession(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return ErrNotFound
	}
	if at.Before(sess.expiresAt) {
		sess.expiresAt = at
		s.sessions[token] = sess
	}
	return nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
