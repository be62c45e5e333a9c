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

type ProjectRequest struct {
	Title       string      `json:"title" binding:"required,max=200"`
	Description string      `json:"description" binding:"required,max=2000"`
	Status      string      `json:"status"`
	Deadline    *time.Time  `json:"deadline"`
	Members     []uuid.UUID `json:"members"`
}

type UpdateProjectRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Deadline    *time.Time `json:"deadline"`
}

type ProjectHandler struct {
	projectService services.ProjectService
	logger         *slog.Logger
	timeout        time.Duration
}

func NewProjectHandler(projectService services.ProjectService, logger *slog.Logger, timeout time.Duration) *ProjectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectHandler{projectService: projectService, logger: logger, timeout: timeout}
}

func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	project, err := h.projectService.CreateProject(ctx, userID, services.ProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Deadline:    req.Deadline,
		MemberIDs:   req.Members,
	})
	if err != nil {
		h.handleProjectError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) GetProjects(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	h.listFor(c, userID)
}

// GetUserProjects lists another user's projects. Any authenticated caller may
// use it.
func (h *ProjectHandler) GetUserProjects(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	h.listFor(c, userID)
}

func (h *ProjectHandler) listFor(c *gin.Context, userID uuid.UUID) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	projects, err := h.projectService.ListProjects(ctx, userID)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
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

	project, err := h.projectService.GetProject(ctx, id, userID)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	project, err := h.projectService.UpdateProject(ctx, id, userID, repositories.ProjectUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Deadline:    req.Deadline,
	})
	if err != nil {
		h.handleProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(c *gin.Context) {
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

	if err := h.projectService.DeleteProject(ctx, id, userID); err != nil {
		h.handleProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "project deleted successfully"})
}

func (h *ProjectHandler) JoinProject(c *gin.Context) {
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

	project, err := h.projectService.JoinProject(ctx, id, userID)
	if err != nil {
		h.handleProjectError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) handleProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
	case errors.Is(err, services.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrCancelled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request timed out"})
	default:
		h.logger.Error("project request failed", slog.String("path", c.Request.URL.Path), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process project request"})
	}
}
