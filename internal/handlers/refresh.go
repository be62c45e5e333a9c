package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"taskhub/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type RefreshHandler struct {
	authService services.AuthService
	logger      *slog.Logger
	timeout     time.Duration
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func NewRefreshHandler(authService services.AuthService, logger *slog.Logger, timeout time.Duration) *RefreshHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshHandler{authService: authService, logger: logger, timeout: timeout}
}

func (h *RefreshHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	pair, err := h.authService.Refresh(ctx, req.RefreshToken)
	if errors.Is(err, services.ErrInvalidToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	if err != nil {
		h.logger.Error("refresh token", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}
