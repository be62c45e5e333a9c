package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskhub/backend/internal/accesscode"
	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"
	"taskhub/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const passwordPlaceholder = "********"

type CreateTaskRequest struct {
	Title          string     `json:"title" binding:"required,max=200"`
	Description    string     `json:"description" binding:"max=2000"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	DueDate        *time.Time `json:"due_date"`
	Deadline       *time.Time `json:"deadline"`
	ProjectID      *uuid.UUID `json:"project_id"`
	AssignedTo     *uuid.UUID `json:"assigned_to"`
	AccessPassword string     `json:"access_password" binding:"required,min=1,max=72"`
}

type JoinTaskRequest struct {
	AccessCode     string `json:"access_code" binding:"required"`
	AccessPassword string `json:"access_password" binding:"required"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	Progress    *int       `json:"progress"`
	DueDate     *time.Time `json:"due_date"`
	Deadline    *time.Time `json:"deadline"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
	ProjectID   *uuid.UUID `json:"project_id"`
}

// TaskResponse is a task as returned to clients. The access password is
// replaced by a fixed placeholder.
type TaskResponse struct {
	*models.Task
	AccessPassword string `json:"access_password"`
}

func newTaskResponse(task *models.Task) TaskResponse {
	return TaskResponse{Task: task, AccessPassword: passwordPlaceholder}
}

func newTaskResponses(tasks []models.Task) []TaskResponse {
	out := make([]TaskResponse, len(tasks))
	for i := range tasks {
		out[i] = newTaskResponse(&tasks[i])
	}
	return out
}

type TaskHandler struct {
	taskService services.TaskService
	logger      *slog.Logger
	timeout     time.Duration
}

func NewTaskHandler(taskService services.TaskService, logger *slog.Logger, timeout time.Duration) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{taskService: taskService, logger: logger, timeout: timeout}
}

func validateTaskInput(req *CreateTaskRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return errors.New("title is required")
	}
	if req.Status != "" && !models.ValidTaskStatus(req.Status) {
		return errors.New("status must be one of: " + strings.Join(models.TaskStatuses, ", "))
	}
	if req.Priority != "" && !models.ValidTaskPriority(req.Priority) {
		return errors.New("priority must be one of: " + strings.Join(models.TaskPriorities, ", "))
	}
	if req.DueDate != nil && req.Deadline != nil && req.Deadline.Before(*req.DueDate) {
		return errors.New("deadline cannot be before due date")
	}
	return nil
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateTaskInput(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	task, err := h.taskService.CreateTask(ctx, userID, services.CreateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		DueDate:        req.DueDate,
		Deadline:       req.Deadline,
		ProjectID:      req.ProjectID,
		AssignedTo:     req.AssignedTo,
		AccessPassword: req.AccessPassword,
	})
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(task))
}

func (h *TaskHandler) JoinTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req JoinTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	code := accesscode.Normalize(req.AccessCode)
	if !accesscode.Valid(code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "access code must be 6 letters or digits"})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	task, err := h.taskService.JoinTask(ctx, code, req.AccessPassword, userID)
	if errors.Is(err, services.ErrNotFound) {
		err = services.ErrInvalidCredential
	}
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
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

	task, err := h.taskService.GetTask(ctx, id, userID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(repositories.DefaultPageSize)))
	opts := repositories.ListOptions{
		SortBy:   c.DefaultQuery("sortBy", "created_at"),
		Order:    c.DefaultQuery("order", "desc"),
		Page:     page,
		PageSize: pageSize,
	}.Normalize()

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	tasks, total, err := h.taskService.ListTasks(ctx, userID, opts)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks":    newTaskResponses(tasks),
		"total":    total,
		"page":     opts.Page,
		"pageSize": opts.PageSize,
	})
}

func (h *TaskHandler) GetProjectTasks(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "projectId")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	tasks, err := h.taskService.ListProjectTasks(ctx, projectID, userID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponses(tasks))
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	task, err := h.taskService.UpdateTask(ctx, id, userID, repositories.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Progress:    req.Progress,
		DueDate:     req.DueDate,
		Deadline:    req.Deadline,
		AssignedTo:  req.AssignedTo,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
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

	if err := h.taskService.DeleteTask(ctx, id, userID); err != nil {
		h.handleTaskError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleTaskError maps service errors to responses. JoinTask folds unknown
// codes into ErrInvalidCredential first so both get the same 401.
func (h *TaskHandler) handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"error": services.ErrInvalidCredential.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, services.ErrAlreadyMember):
		c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrCancelled):
		h.logger.Warn("task request cancelled", slog.String("path", c.Request.URL.Path), slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request timed out"})
	default:
		h.logger.Error("task request failed", slog.String("path", c.Request.URL.Path), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process task request"})
	}
}
