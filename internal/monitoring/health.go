package monitoring

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

// DetailFunc reports component statistics shown by the health endpoint. It
// never affects the overall status.
type DetailFunc func() map[string]interface{}

type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheckFunc
	details   map[string]DetailFunc
	timeout   time.Duration
	startTime time.Time
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		checks:    make(map[string]HealthCheckFunc),
		details:   make(map[string]DetailFunc),
		timeout:   timeout,
		startTime: time.Now(),
	}
}

func (h *HealthChecker) Register(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

func (h *HealthChecker) RegisterDetail(name string, detail DetailFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.details[name] = detail
}

// Details collects the output of every registered DetailFunc.
func (h *HealthChecker) Details() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]interface{}, len(h.details))
	for name, fn := range h.details {
		out[name] = fn()
	}
	return out
}

// Run executes every registered check with its own timeout.
func (h *HealthChecker) Run(ctx context.Context) map[string]HealthCheck {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]HealthCheck, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := checks[name](checkCtx)
		cancel()

		result := HealthCheck{Name: name, Status: "healthy", LastRun: time.Now()}
		if err != nil {
			result.Status = "unhealthy"
			result.Message = err.Error()
		}
		results[name] = result
	}
	return results
}

func (h *HealthChecker) healthy(ctx context.Context) (bool, map[string]HealthCheck) {
	checks := h.Run(ctx)
	for _, check := range checks {
		if check.Status != "healthy" {
			return false, checks
		}
	}
	return true, checks
}

func (h *HealthChecker) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, checks := h.healthy(c.Request.Context())

		overallStatus := "healthy"
		status := http.StatusOK
		if !ok {
			overallStatus = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"status":    overallStatus,
			"timestamp": time.Now(),
			"checks":    checks,
			"uptime":    time.Since(h.startTime).String(),
		}
		if details := h.Details(); len(details) > 0 {
			body["details"] = details
		}
		c.JSON(status, body)
	}
}

func (h *HealthChecker) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, _ := h.healthy(c.Request.Context()); !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not ready",
				"timestamp": time.Now(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	}
}

func (h *HealthChecker) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
			"uptime":    time.Since(h.startTime).String(),
		})
	}
}
