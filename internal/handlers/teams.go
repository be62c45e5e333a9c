package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"taskhub/backend/internal/repositories"
	"taskhub/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type TeamRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=2000"`
}

type UpdateTeamRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type AddTeamMemberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type TeamHandler struct {
	teamService services.TeamService
	logger      *slog.Logger
	timeout     time.Duration
}

func NewTeamHandler(teamService services.TeamService, logger *slog.Logger, timeout time.Duration) *TeamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeamHandler{teamService: teamService, logger: logger, timeout: timeout}
}

func (h *TeamHandler) GetTeams(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	teams, err := h.teamService.ListTeams(ctx)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}
	c.JSON(http.StatusOK, teams)
}

func (h *TeamHandler) GetTeam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	team, err := h.teamService.GetTeam(ctx, id, userID)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) CreateTeam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req TeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	team, err := h.teamService.CreateTeam(ctx, userID, req.Name, req.Description)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}
	c.JSON(http.StatusCreated, team)
}

func (h *TeamHandler) UpdateTeam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	team, err := h.teamService.UpdateTeam(ctx, id, userID, repositories.TeamUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.handleTeamError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) AddMember(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req AddTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	team, err := h.teamService.AddMember(ctx, id, userID, req.UserID)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) RemoveMember(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	team, err := h.teamService.RemoveMember(ctx, id, userID, memberID)
	if err != nil {
		h.handleTeamError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) DeleteTeam(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	if err := h.teamService.DeleteTeam(ctx, id, userID); err != nil {
		h.handleTeamError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "team deleted successfully"})
}

func (h *TeamHandler) handleTeamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "team not found"})
	case errors.Is(err, services.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrCancelled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request timed out"})
	default:
		h.logger.Error("team request failed", slog.String("path", c.Request.URL.Path), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process team request"})
	}
}
