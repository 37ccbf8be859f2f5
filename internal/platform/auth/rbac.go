package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireActor rejects requests that reached the handler without an
// authenticated actor.
func RequireActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !ActorFromContext(c.Request().Context()).Valid() {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// RequireRole returns middleware that checks the actor has one of the roles.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := ActorFromContext(c.Request().Context())
			if !actor.Valid() {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			for _, r := range roles {
				if actor.Role == r {
					return next(c)
				}
			}
			names := make([]string, len(roles))
			for i, r := range roles {
				names[i] = string(r)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}
