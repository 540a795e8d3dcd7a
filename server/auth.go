package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/existflow/keepsession/internal/logger"
	"github.com/existflow/keepsession/internal/model"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, model.ErrorResponse{Error: msg})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// handleSignup registers an account. It does not log the user in.
func (s *Server) handleSignup(c echo.Context) error {
	var req model.SignupRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request")
	}

	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return errorJSON(c, http.StatusBadRequest, "a valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return errorJSON(c, http.StatusBadRequest, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("bcrypt failed", logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	u := model.User{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          strings.TrimSpace(req.Name),
		Company:       strings.TrimSpace(req.Company),
		Role:          "member",
		Plan:          "free",
		Notifications: model.Notifications{Email: true},
		CreatedAt:     s.now().UTC(),
	}

	ctx := c.Request().Context()
	if err := s.store.CreateUser(ctx, u, string(hash)); err != nil {
		if errors.Is(err, ErrConflict) {
			return errorJSON(c, http.StatusConflict, "an account with this email already exists")
		}
		logger.Error("create user failed", logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	logger.Info("User registered", logger.F("email", email))

	return c.JSON(http.StatusCreated, model.SignupResponse{
		Message: "Account created. Please log in.",
		Email:   email,
	})
}

// handleLogin checks credentials and issues a bearer token
func (s *Server) handleLogin(c echo.Context) error {
	var req model.Credentials
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request")
	}

	ctx := c.Request().Context()
	u, hash, err := s.store.UserByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return errorJSON(c, http.StatusUnauthorized, "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		return errorJSON(c, http.StatusUnauthorized, "invalid email or password")
	}

	token, err := s.createSession(c, u.ID)
	if err != nil {
		logger.Error("session error", logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	logger.Info("User logged in", logger.F("user_id", u.ID))

	return c.JSON(http.StatusOK, model.LoginResponse{Token: token, User: *u})
}

// handleMe returns the current user
func (s *Server) handleMe(c echo.Context) error {
	u, err := s.store.UserByID(c.Request().Context(), c.Get("user_id").(string))
	if err != nil {
		// The account is gone, so the session is too.
		return errorJSON(c, http.StatusUnauthorized, "user not found")
	}
	return c.JSON(http.StatusOK, model.MeResponse{User: *u})
}

// handleRefresh issues a fresh token and retires the presented one after
// the grace window
func (s *Server) handleRefresh(c echo.Context) error {
	ctx := c.Request().Context()

	token, err := s.createSession(c, c.Get("user_id").(string))
	if err != nil {
		logger.Error("session error", logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}
	// Requests already in flight with the old token must still succeed.
	if err := s.store.ShortenSession(ctx, c.Get("token").(string), s.now().Add(s.grace)); err != nil {
		logger.Warn("failed to retire refreshed token", logger.F("error", err))
	}

	return c.JSON(http.StatusOK, model.RefreshResponse{Token: token, AccessToken: token})
}

// handleLogout revokes the presented token
func (s *Server) handleLogout(c echo.Context) error {
	if err := s.store.DeleteSession(c.Request().Context(), c.Get("token").(string)); err != nil {
		logger.Error("logout failed", logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

// createSession creates a new session for a user
func (s *Server) createSession(c echo.Context, userID string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	expiresAt := s.now().Add(s.tokenTTL)
	if err := s.store.CreateSession(c.Request().Context(), token, userID, expiresAt); err != nil {
		return "", err
	}
	return token, nil
}
