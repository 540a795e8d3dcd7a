package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/existflow/keepsession/internal/model"
	"github.com/lib/pq"
)

// PostgresStore keeps accounts and sessions in PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dbURL and runs migrations
func OpenPostgres(dbURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// profile is the part of a user stored as JSON
type profile struct {
	Name          string              `json:"name"`
	Role          string              `json:"role"`
	Plan          string              `json:"plan"`
	Phone         string              `json:"phone,omitempty"`
	Company       string              `json:"company,omitempty"`
	Address       model.Address       `json:"address"`
	Notifications model.Notifications `json:"notifications"`
}

func (s *PostgresStore) CreateUser(ctx context.Context, u model.User, passwordHash string) error {
	data, err := json.Marshal(profile{
		Name: u.Name, Role: u.Role, Plan: u.Plan, Phone: u.Phone, Company: u.Company,
		Address: u.Address, Notifications: u.Notifications,
	})
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, profile, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, strings.ToLower(u.Email), passwordHash, data, u.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*model.User, string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, profile, created_at FROM users WHERE email = $1`,
		strings.ToLower(email))
	return scanUser(row)
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, profile, created_at FROM users WHERE id = $1`, id)
	u, _, err := scanUser(row)
	return u, err
}

func scanUser(row *sql.Row) (*model.User, string, error) {
	var (
		u    model.User
		hash string
		raw  []byte
	)
	if err := row.Scan(&u.ID, &u.Email, &hash, &raw, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}

	var p profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, "", fmt.Errorf("decode profile: %w", err)
	}
	u.Name, u.Role, u.Plan, u.Phone, u.Company = p.Name, p.Role, p.Plan, p.Phone, p.Company
	u.Address, u.Notifications = p.Address, p.Notifications
	return &u, hash, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, token, expires_at)
		VALUES ($1, $2, $3)`,
		userID, token, expiresAt,
	)
	return err
}

func (s *PostgresStore) SessionUser(ctx context.Context, token string) (string, time.Time, error) {
	var (
		userID    string
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, expires_at FROM sessions WHERE token = $1`, token,
	).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, ErrNotFound
	}
	return userID, expiresAt, err
}

func (s *PostgresStore) ShortenSession(ctx context.Context, token string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET expires_at = LEAST(expires_at, $2) WHERE token = $1`,
		token, at,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
