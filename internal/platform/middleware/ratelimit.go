package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL evicts limiters that have not been used for this long.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
		IdleTTL:           10 * time.Minute,
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool holds one token bucket per client key.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*limiterEntry
	cfg       RateLimitConfig
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 40
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &limiterPool{
		m:   make(map[string]*limiterEntry),
		cfg: cfg,
		now: time.Now,
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) > p.cfg.IdleTTL {
		for k, e := range p.m {
			if now.Sub(e.lastSeen) > p.cfg.IdleTTL {
				delete(p.m, k)
			}
		}
		p.lastSweep = now
	}

	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.limiter
	}
	l := rate.NewLimiter(rate.Limit(p.cfg.RequestsPerSecond), p.cfg.BurstSize)
	p.m[key] = &limiterEntry{limiter: l, lastSeen: now}
	return l
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// RateLimit limits each authenticated actor, or each client IP for
// anonymous requests, to a token bucket. Rejected requests get 429 with a
// Retry-After header.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	pool := newLimiterPool(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if actor := auth.ActorFromContext(c.Request().Context()); actor != nil {
				key = "actor:" + actor.ID
			}

			l := pool.get(key)
			r := l.Reserve()
			if !r.OK() {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			if delay := r.Delay(); delay > 0 {
				r.Cancel()
				secs := int(math.Ceil(delay.Seconds()))
				if secs < 1 {
					secs = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(pool.cfg.BurstSize))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(l.Tokens())))
			return next(c)
		}
	}
}
