package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRequestTimeout_CompletesWithinDeadline(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil), rec)

	if err := RequestTimeout(time.Second)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequestTimeout_ReturnsGatewayTimeout(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil), httptest.NewRecorder())

	err := RequestTimeout(50 * time.Millisecond)(func(c echo.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %v", err)
	}
}

func TestRequestTimeout_ContextHasDeadline(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_ = RequestTimeout(time.Second)(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); !ok {
			t.Error("expected deadline on request context")
		}
		return nil
	})(c)
}

func TestRequestTimeout_ZeroDisables(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_ = RequestTimeout(0)(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("expected no deadline when timeout is zero")
		}
		return nil
	})(c)
}

func TestRequestTimeout_PropagatesHandlerError(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	want := errors.New("handler failed")

	if err := RequestTimeout(time.Second)(func(c echo.Context) error { return want })(c); !errors.Is(err, want) {
		t.Errorf("expected handler error, got %v", err)
	}
}
