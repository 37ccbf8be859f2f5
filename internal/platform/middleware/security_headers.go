package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets the response headers expected of a JSON API serving
// personal health discussions.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			// Legacy XSS filter off; CSP below covers it.
			h.Set("X-XSS-Protection", "0")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			// Forum content and inboxes are per-user.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
