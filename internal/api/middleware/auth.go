package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/diagnosphere/skincheck-api/internal/core/ports"
	"github.com/diagnosphere/skincheck-api/internal/pkg/token"
)

// Context keys set by Auth.
const (
	UserIDKey  = "user_id"
	TokenIDKey = "token_id"
)

// BearerToken returns the raw token from an "Authorization: Bearer <t>"
// header, or "" when the header is absent or malformed.
func BearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Auth validates the bearer token, rejects revoked tokens and injects the
// caller's user ID into the context. A nil revoker skips the revocation check.
// Revocation-store failures are logged and the request is let through.
func Auth(jwtSecret string, revoker ports.TokenRevoker, log zerolog.Logger) echo.MiddlewareFunc {
	secret := []byte(jwtSecret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "no token, authorization denied")
			}

			raw := BearerToken(c)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := token.Parse(raw, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "token is not valid")
			}

			if revoker != nil && claims.ID != "" {
				revoked, err := revoker.IsRevoked(c.Request().Context(), claims.ID)
				if err != nil {
					log.Warn().Err(err).Str("token_id", claims.ID).Msg("revocation check failed")
				} else if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
				}
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(TokenIDKey, claims.ID)

			return next(c)
		}
	}
}
