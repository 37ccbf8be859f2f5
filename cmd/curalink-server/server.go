package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/Abhinaba-code/curalinkproject-sub000/internal/config"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/domain/forum"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/domain/notification"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/auth"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/cache"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/db"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/metrics"
	"github.com/Abhinaba-code/curalinkproject-sub000/internal/platform/middleware"
)

const version = "0.1.0"

type server struct {
	echo   *echo.Echo
	router *notification.Router
	forum  *forum.Service
}

func newServer(cfg *config.Config, logger zerolog.Logger, st *storage, unread cache.Cache, m *metrics.Metrics) *server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(m.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Infrastructure endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(st.backend, st.check))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	router := notification.NewRouter(st.notifications, st.tx, logger, notification.Options{
		Cache:    unread,
		CacheTTL: cfg.UnreadCacheTTL,
		Metrics:  m,
	})
	forumSvc := forum.NewService(st.posts, st.tx, router, logger, forum.Options{
		StrictRoles:  cfg.ForumStrictRoles,
		EmojiPalette: cfg.ForumEmojiPalette,
		Metrics:      m,
	})

	forum.NewHandler(forumSvc).RegisterRoutes(apiV1)
	notification.NewHandler(router).RegisterRoutes(apiV1)

	return &server{echo: e, router: router, forum: forumSvc}
}
