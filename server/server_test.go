package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/existflow/keepsession/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_SessionLifecycle(t *testing.T) {
	h := New(NewMemoryStore()).Router()

	rec := call(t, h, "POST", "/auth/signup", "", model.SignupRequest{Email: "Ada@Example.com", Password: "correct horse", Name: "Ada"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	signup := decode[model.SignupResponse](t, rec)
	assert.Equal(t, "ada@example.com", signup.Email)
	assert.NotEmpty(t, signup.Message)

	rec = call(t, h, "POST", "/auth/login", "", model.Credentials{Email: "ada@example.com", Password: "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[model.LoginResponse](t, rec)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "Ada", login.User.Name)
	assert.Equal(t, "member", login.User.Role)

	rec = call(t, h, "GET", "/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, login.User.ID, decode[model.MeResponse](t, rec).User.ID)

	rec = call(t, h, "POST", "/auth/refresh", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	refreshed := decode[model.RefreshResponse](t, rec)
	require.NotEmpty(t, refreshed.Token)
	assert.Equal(t, refreshed.Token, refreshed.AccessToken)
	assert.NotEqual(t, login.Token, refreshed.Token)

	rec = call(t, h, "GET", "/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "old token works during the grace window")

	rec = call(t, h, "POST", "/auth/logout", refreshed.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, h, "GET", "/auth/me", refreshed.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_LoginRejectsBadPassword(t *testing.T) {
	h := New(NewMemoryStore()).Router()
	call(t, h, "POST", "/auth/signup", "", model.SignupRequest{Email: "ada@example.com", Password: "correct horse"})

	rec := call(t, h, "POST", "/auth/login", "", model.Credentials{Email: "ada@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", decode[model.ErrorResponse](t, rec).Error)
}

func TestServer_SignupValidation(t *testing.T) {
	h := New(NewMemoryStore()).Router()

	rec := call(t, h, "POST", "/auth/signup", "", model.SignupRequest{Email: "nope", Password: "correct horse"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, "POST", "/auth/signup", "", model.SignupRequest{Email: "ada@example.com", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	call(t, h, "POST", "/auth/signup", "", model.SignupRequest{Email: "ada@example.com", Password: "correct horse"})
	rec = call(t, h, "POST", "/auth/signup", "", model.SignupRequest{Email: "ada@example.com", Password: "correct horse"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_ExpiredTokenIsRejected(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	h := New(NewMemoryStore(), WithClock(func() time.Time { return now })).Router()

	call(t, h, "POST", "/auth/signup", "", model.SignupRequest{Email: "ada@example.com", Password: "correct horse"})
	login := decode[model.LoginResponse](t, call(t, h, "POST", "/auth/login", "", model.Credentials{Email: "ada@example.com", Password: "correct horse"}))

	now = now.Add(23*time.Hour + time.Second)
	rec := call(t, h, "GET", "/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_MissingAuthorization(t *testing.T) {
	h := New(NewMemoryStore()).Router()

	assert.Equal(t, http.StatusUnauthorized, call(t, h, "GET", "/auth/me", "", nil).Code)
	assert.Equal(t, http.StatusOK, call(t, h, "GET", "/health", "", nil).Code)
}

func TestServer_RefreshedTokenGraceWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	h := New(NewMemoryStore(),
		WithClock(func() time.Time { return now }),
		WithRefreshGrace(30*time.Second),
	).Router()

	call(t, h, "POST", "/auth/signup", "", model.SignupRequest{Email: "ada@example.com", Password: "correct horse"})
	login := decode[model.LoginResponse](t, call(t, h, "POST", "/auth/login", "", model.Credentials{Email: "ada@example.com", Password: "correct horse"}))

	rec := call(t, h, "POST", "/auth/refresh", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	refreshed := decode[model.RefreshResponse](t, rec)

	now = now.Add(29 * time.Second)
	assert.Equal(t, http.StatusOK, call(t, h, "GET", "/auth/me", login.Token, nil).Code)

	now = now.Add(2 * time.Second)
	assert.Equal(t, http.StatusUnauthorized, call(t, h, "GET", "/auth/me", login.Token, nil).Code)
	assert.Equal(t, http.StatusOK, call(t, h, "GET", "/auth/me", refreshed.Token, nil).Code)
}
