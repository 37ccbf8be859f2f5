// Package apperr defines the error taxonomy shared by the forum and
// notification domains and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("not authorized")
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalid         = errors.New("invalid request")
	ErrConflict        = errors.New("conflict")
)

// Status returns the HTTP status code for err.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// HTTP converts a domain error into an echo error. Internal errors are not
// echoed back to the client.
func HTTP(err error) *echo.HTTPError {
	code := Status(err)
	if code == http.StatusInternalServerError {
		return echo.NewHTTPError(code, "internal server error").SetInternal(err)
	}
	return echo.NewHTTPError(code, err.Error())
}
