package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tfRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapfolio_requests_total",
		Help: "Total HTTP requests by method, route, and response status.",
	}, []string{"method", "route", "status"})

	tfRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tapfolio_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	tfSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapfolio_profile_saves_total",
		Help: "Profile save attempts by result.",
	}, []string{"result"})

	tfSignInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapfolio_sign_ins_total",
		Help: "Sign-in code verifications by result.",
	}, []string{"result"})

	tfFaceVerifiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapfolio_face_verifies_total",
		Help: "Face verification attempts by outcome.",
	}, []string{"outcome"})
)

// PrometheusMiddleware returns a Gin middleware that records
// per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		tfRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		tfRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
