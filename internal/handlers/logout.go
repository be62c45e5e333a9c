package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"taskhub/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type LogoutHandler struct {
	authService services.AuthService
	logger      *slog.Logger
	timeout     time.Duration
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func NewLogoutHandler(authService services.AuthService, logger *slog.Logger, timeout time.Duration) *LogoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogoutHandler{authService: authService, logger: logger, timeout: timeout}
}

// Logout always reports success; a failed revoke is only logged.
func (h *LogoutHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	if err := h.authService.Logout(ctx, req.RefreshToken); err != nil {
		h.logger.Warn("revoke refresh token", slog.Any("error", err))
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully logged out",
	})
}
