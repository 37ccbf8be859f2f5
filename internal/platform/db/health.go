package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// HealthCheck probes a storage backend. details is rendered next to the
// status whether or not the probe failed.
type HealthCheck func(ctx context.Context) (details interface{}, err error)

// PoolCheck pings the pool and reports its statistics.
func PoolCheck(pool *pgxpool.Pool) HealthCheck {
	return func(ctx context.Context) (interface{}, error) {
		err := pool.Ping(ctx)
		return GetPoolStats(pool), err
	}
}

// HealthHandler returns the handler for GET /health/db.
func HealthHandler(backend string, check HealthCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		details, err := check(ctx)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":  "unhealthy",
				"backend": backend,
				"error":   err.Error(),
				"details": details,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"backend": backend,
			"details": details,
		})
	}
}
