package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"method", "route", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskhub_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskhub_http_active_requests",
		Help: "Requests currently being served.",
	})

	AccessCodeDraws = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_access_code_draws_total",
		Help: "Candidate access codes generated.",
	})

	AccessCodeCollisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_access_code_collisions_total",
		Help: "Candidate access codes rejected because a task already used them.",
	}, []string{"stage"})

	JoinAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_task_join_attempts_total",
		Help: "Join-by-code attempts by outcome.",
	}, []string{"outcome"})

	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_tasks_created_total",
		Help: "Tasks created.",
	})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_cache_requests_total",
		Help: "Task cache lookups by result.",
	}, []string{"result"})
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ActiveRequests.Inc()

		c.Next()

		ActiveRequests.Dec()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		RequestCount.WithLabelValues(c.Request.Method, route, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
