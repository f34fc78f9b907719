package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/diagnosphere/skincheck-api/internal/api/middleware"
)

// ctxUserID extracts the user ID injected by the Auth middleware. An empty
// value means the route was mounted without the middleware; reject with 401
// before any service call.
func ctxUserID(c echo.Context) (string, error) {
	userID, _ := c.Get(middleware.UserIDKey).(string)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return userID, nil
}
