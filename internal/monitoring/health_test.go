package monitoring_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskhub/backend/internal/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHealthRouter(checker *monitoring.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", checker.HealthHandler())
	router.GET("/ready", checker.ReadinessHandler())
	router.GET("/live", checker.LivenessHandler())
	return router
}

func TestHealthChecker_AllHealthy(t *testing.T) {
	checker := monitoring.NewHealthChecker(time.Second)
	checker.Register("database", func(ctx context.Context) error { return nil })
	router := setupHealthRouter(checker)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status string                            `json:"status"`
		Checks map[string]monitoring.HealthCheck `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"].Status)
}

func TestHealthChecker_FailingCheck(t *testing.T) {
	checker := monitoring.NewHealthChecker(time.Second)
	checker.Register("database", func(ctx context.Context) error { return nil })
	checker.Register("redis", func(ctx context.Context) error { return errors.New("connection refused") })
	router := setupHealthRouter(checker)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not ready")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthChecker_CheckTimeout(t *testing.T) {
	checker := monitoring.NewHealthChecker(20 * time.Millisecond)
	checker.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	results := checker.Run(context.Background())
	assert.Equal(t, "unhealthy", results["slow"].Status)
	assert.Contains(t, results["slow"].Message, "deadline exceeded")
}

func TestMetricsHandler_ExposesAccessCodeCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(monitoring.MetricsMiddleware())
	router.GET("/metrics", monitoring.MetricsHandler())

	monitoring.AccessCodeDraws.Inc()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "taskhub_access_code_draws_total")
}

func TestHealthChecker_Details(t *testing.T) {
	checker := monitoring.NewHealthChecker(time.Second)
	checker.Register("database", func(ctx context.Context) error { return nil })
	router := setupHealthRouter(checker)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotContains(t, w.Body.String(), "details")

	checker.RegisterDetail("task_cache", func() map[string]interface{} {
		return map[string]interface{}{"hits": 3}
	})

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Details map[string]map[string]float64 `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body.Details["task_cache"]["hits"])
}
