// Package metrics owns the Prometheus collectors for the forum and
// notification subsystems. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "curalink"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	forum         *prometheus.CounterVec
	notifications *prometheus.CounterVec
	notifDeleted  *prometheus.CounterVec
	reactions     *prometheus.CounterVec
	unreadCache   *prometheus.CounterVec
	retentionRuns *prometheus.CounterVec
}

// New builds a Metrics backed by its own registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		forum: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forum_writes_total",
			Help:      "Forum posts and replies created or deleted.",
		}, []string{"entity", "op"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notification records created by kind.",
		}, []string{"kind"}),
		notifDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_deleted_total",
			Help:      "Notification records removed by cause.",
		}, []string{"cause"}),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaction_toggles_total",
			Help:      "Reaction toggles by target and outcome.",
		}, []string{"target", "outcome"}),
		unreadCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unread_cache_lookups_total",
			Help:      "Unread-count cache lookups by result.",
		}, []string{"result"}),
		retentionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_retention_runs_total",
			Help:      "Retention sweeps by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.forum,
		m.notifications,
		m.notifDeleted,
		m.reactions,
		m.unreadCache,
		m.retentionRuns,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count and latency keyed by the matched route
// so that path parameters do not explode label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// ForumWrite counts a committed forum change. entity is "post" or "reply";
// op is "created" or "deleted".
func (m *Metrics) ForumWrite(entity, op string) {
	if m == nil {
		return
	}
	m.forum.WithLabelValues(entity, op).Inc()
}

func (m *Metrics) NotificationCreated(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

// NotificationsDeleted counts removals. cause is one of "cascade", "user" or
// "retention".
func (m *Metrics) NotificationsDeleted(cause string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notifDeleted.WithLabelValues(cause).Add(float64(n))
}

// ReactionToggled counts a toggle. target is "post" or "reply"; outcome is
// "added", "removed" or "switched".
func (m *Metrics) ReactionToggled(target, outcome string) {
	if m == nil {
		return
	}
	m.reactions.WithLabelValues(target, outcome).Inc()
}

func (m *Metrics) UnreadCacheLookup(result string) {
	if m == nil {
		return
	}
	m.unreadCache.WithLabelValues(result).Inc()
}

func (m *Metrics) RetentionRun(result string) {
	if m == nil {
		return
	}
	m.retentionRuns.WithLabelValues(result).Inc()
}
