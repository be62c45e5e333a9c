package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"taskhub/backend/internal/repositories"
	"taskhub/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService services.DashboardService
	logger           *slog.Logger
	timeout          time.Duration
}

func NewDashboardHandler(dashboardService services.DashboardService, logger *slog.Logger, timeout time.Duration) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{dashboardService: dashboardService, logger: logger, timeout: timeout}
}

func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	dashboard, err := h.dashboardService.GetDashboard(ctx, userID)
	if errors.Is(err, repositories.ErrCancelled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request timed out"})
		return
	}
	if err != nil {
		h.logger.Error("load dashboard", slog.String("user_id", userID.String()), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load dashboard"})
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
