package httpapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/firstprint/internal/auth"
)

const apiKeyHeader = "X-API-Key"

// requireAPIKey gates mutating article endpoints behind the configured bcrypt
// hash. An empty hash disables the gate (local development).
func (s *Server) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hash := strings.TrimSpace(s.opts.IngestAPIKeyHash)
		if hash == "" {
			return next(c)
		}

		key := strings.TrimSpace(c.Request().Header.Get(apiKeyHeader))
		if key == "" {
			return failUnauthorized(c, "API key is required")
		}
		if !auth.VerifyAPIKey(key, hash) {
			return failUnauthorized(c, "Invalid API key")
		}
		return next(c)
	}
}
