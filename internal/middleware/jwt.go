// Package middleware contains reusable Echo middleware: bearer-token
// authentication and the Redis token-bucket rate limiter.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-reservation/internal/auth"
)

// userIDKey is the context key under which JWTAuth stores the
// authenticated user id.
const userIDKey = "user_id"

// JWTAuth returns an Echo middleware that validates a Bearer access
// token via the given verifier and injects the resolved user id into
// the request context.  Handlers read it back with UserID(c).
func JWTAuth(v *auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")
			uid, err := v.UserID(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(userIDKey, uid)
			return next(c)
		}
	}
}

// UserID extracts the authenticated user id placed in the context by
// JWTAuth.  The second return value is false when the middleware did
// not run or stored an unexpected type.
func UserID(c echo.Context) (uint64, bool) {
	uid, ok := c.Get(userIDKey).(uint64)
	return uid, ok
}
