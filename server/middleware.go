package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// authMiddleware checks for a valid bearer token
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get("Authorization")
		if auth == "" {
			return errorJSON(c, http.StatusUnauthorized, "authorization required")
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token == "" {
			return errorJSON(c, http.StatusUnauthorized, "invalid authorization format")
		}

		ctx := c.Request().Context()
		userID, expiresAt, err := s.store.SessionUser(ctx, token)
		if err != nil {
			return errorJSON(c, http.StatusUnauthorized, "invalid token")
		}

		if s.now().After(expiresAt) {
			_ = s.store.DeleteSession(ctx, token)
			return errorJSON(c, http.StatusUnauthorized, "token expired")
		}

		c.Set("user_id", userID)
		c.Set("token", token)
		return next(c)
	}
}
