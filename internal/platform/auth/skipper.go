package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists infrastructure endpoints that bypass authentication.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path is a public infrastructure endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
