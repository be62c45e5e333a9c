package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"taskhub/backend/internal/accesscode"
	"taskhub/backend/internal/models"
	"taskhub/backend/internal/monitoring"
	"taskhub/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

type CreateTaskInput struct {
	Title          string
	Description    string
	Status         string
	Priority       string
	DueDate        *time.Time
	Deadline       *time.Time
	ProjectID      *uuid.UUID
	AssignedTo     *uuid.UUID
	AccessPassword string
}

type TaskService interface {
	CreateTask(ctx context.Context, leaderID uuid.UUID, input CreateTaskInput) (*models.Task, error)
	JoinTask(ctx context.Context, code, password string, userID uuid.UUID) (*models.Task, error)
	GetTask(ctx context.Context, id, userID uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, userID uuid.UUID, opts repositories.ListOptions) ([]models.Task, int64, error)
	ListProjectTasks(ctx context.Context, projectID, userID uuid.UUID) ([]models.Task, error)
	UpdateTask(ctx context.Context, id, userID uuid.UUID, update repositories.TaskUpdate) (*models.Task, error)
	DeleteTask(ctx context.Context, id, userID uuid.UUID) error
}

type TaskServiceDeps struct {
	Tasks       repositories.TaskRepository
	Projects    repositories.ProjectRepository
	Enforcer    *accesscode.Enforcer
	Credentials CredentialStore
	Policy      *AccessPolicy
	Activity    ActivityRecorder
	Logger      *slog.Logger
}

type TaskServiceImpl struct {
	tasks       repositories.TaskRepository
	projects    repositories.ProjectRepository
	enforcer    *accesscode.Enforcer
	credentials CredentialStore
	policy      *AccessPolicy
	activity    ActivityRecorder
	logger      *slog.Logger

	decoyOnce sync.Once
	decoyHash string
}

// decoyPassword is hashed once and verified against when a join names an
// unknown code, so both rejection paths cost one hash comparison.
const decoyPassword = "taskhub-unknown-access-code"

func NewTaskService(deps TaskServiceDeps) *TaskServiceImpl {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Policy == nil {
		deps.Policy = NewAccessPolicy(deps.Logger)
	}
	if deps.Enforcer == nil {
		deps.Enforcer = accesscode.NewEnforcer(nil, deps.Tasks, accesscode.DefaultMaxAttempts, deps.Logger)
	}
	return &TaskServiceImpl{
		tasks:       deps.Tasks,
		projects:    deps.Projects,
		enforcer:    deps.Enforcer,
		credentials: deps.Credentials,
		policy:      deps.Policy,
		activity:    deps.Activity,
		logger:      deps.Logger,
	}
}

func validateCreateTask(input *CreateTaskInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)

	if input.Title == "" {
		return invalidInput("title is required")
	}
	if input.AccessPassword == "" {
		return invalidInput("access password is required")
	}
	if input.Status == "" {
		input.Status = models.TaskStatusPending
	}
	if !models.ValidTaskStatus(input.Status) {
		return invalidInput("invalid status %q", input.Status)
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	}
	if !models.ValidTaskPriority(input.Priority) {
		return invalidInput("invalid priority %q", input.Priority)
	}
	return nil
}

func validateTaskUpdate(update *repositories.TaskUpdate) error {
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return invalidInput("title cannot be empty")
		}
		update.Title = &title
	}
	if update.Status != nil && !models.ValidTaskStatus(*update.Status) {
		return invalidInput("invalid status %q", *update.Status)
	}
	if update.Priority != nil && !models.ValidTaskPriority(*update.Priority) {
		return invalidInput("invalid priority %q", *update.Priority)
	}
	if update.Progress != nil && (*update.Progress < 0 || *update.Progress > 100) {
		return invalidInput("progress must be between 0 and 100")
	}
	return nil
}

// CreateTask stores a new task led by leaderID under a freshly assigned
// access code. The plaintext access password is hashed before storage.
func (s *TaskServiceImpl) CreateTask(ctx context.Context, leaderID uuid.UUID, input CreateTaskInput) (*models.Task, error) {
	if err := validateCreateTask(&input); err != nil {
		return nil, err
	}

	if input.ProjectID != nil {
		if err := s.checkProject(ctx, *input.ProjectID, leaderID); err != nil {
			return nil, err
		}
	}

	hash, err := s.credentials.Hash(input.AccessPassword)
	if err != nil {
		return nil, fmt.Errorf("hash access password: %w", err)
	}

	task := &models.Task{
		Title:          input.Title,
		Description:    input.Description,
		ProjectID:      input.ProjectID,
		AssignedTo:     input.AssignedTo,
		CreatedBy:      leaderID,
		LeaderID:       leaderID,
		Status:         input.Status,
		Priority:       input.Priority,
		DueDate:        input.DueDate,
		Deadline:       input.Deadline,
		AccessPassword: hash,
	}
	if task.Status == models.TaskStatusCompleted {
		now := time.Now()
		task.CompletedAt = &now
	}

	_, err = s.enforcer.Assign(ctx, func(code string) error {
		task.AccessCode = code
		return s.tasks.Insert(ctx, task)
	})
	if err != nil {
		if !errors.Is(err, repositories.ErrCancelled) {
			s.logger.Error("create task", slog.String("leader_id", leaderID.String()), slog.Any("error", err))
		}
		return nil, err
	}

	monitoring.TasksCreated.Inc()
	s.logger.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("leader_id", leaderID.String()),
	)
	return task, nil
}

// JoinTask admits userID to the task identified by code when password matches
// the task's access password. Unknown codes and wrong passwords are reported
// as distinct errors here; the HTTP layer folds them into one response.
func (s *TaskServiceImpl) JoinTask(ctx context.Context, code, password string, userID uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.FindByCode(ctx, code)
	if err != nil {
		monitoring.JoinAttempts.WithLabelValues("error").Inc()
		return nil, err
	}
	if task == nil {
		s.credentials.Verify(password, s.decoy())
		monitoring.JoinAttempts.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}

	if !s.credentials.Verify(password, task.AccessPassword) {
		monitoring.JoinAttempts.WithLabelValues("invalid_credential").Inc()
		s.logger.Info("join rejected",
			slog.String("task_id", task.ID.String()),
			slog.String("user_id", userID.String()),
		)
		return nil, ErrInvalidCredential
	}

	if task.HasMember(userID) {
		monitoring.JoinAttempts.WithLabelValues("already_member").Inc()
		return nil, ErrAlreadyMember
	}

	updated, err := s.tasks.AppendMemberIfAbsent(ctx, task.ID, models.TaskMember{
		UserID:   userID,
		Role:     models.MemberRoleMember,
		JoinedAt: time.Now(),
	})
	switch {
	case errors.Is(err, repositories.ErrAlreadyPresent):
		monitoring.JoinAttempts.WithLabelValues("already_member").Inc()
		return nil, ErrAlreadyMember
	case errors.Is(err, repositories.ErrNotFound):
		monitoring.JoinAttempts.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	case err != nil:
		monitoring.JoinAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	monitoring.JoinAttempts.WithLabelValues("joined").Inc()
	s.logger.Info("member joined task",
		slog.String("task_id", task.ID.String()),
		slog.String("user_id", userID.String()),
	)
	if s.activity != nil {
		s.activity.Record(ctx, models.Activity{
			Type:        models.ActivityTaskJoined,
			Description: fmt.Sprintf("joined task %q", task.Title),
			UserID:      userID,
			TaskID:      &task.ID,
			ProjectID:   task.ProjectID,
		})
	}
	return updated, nil
}

func (s *TaskServiceImpl) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := s.credentials.Hash(decoyPassword)
		if err != nil {
			s.logger.Error("hash decoy access password", slog.Any("error", err))
			return
		}
		s.decoyHash = hash
	})
	return s.decoyHash
}

// checkProject resolves projectID and requires userID to belong to it.
func (s *TaskServiceImpl) checkProject(ctx context.Context, projectID, userID uuid.UUID) error {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	return s.policy.Project(userID, project, ActionView)
}

func (s *TaskServiceImpl) load(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrNotFound
	}
	return task, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, id, userID uuid.UUID) (*models.Task, error) {
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Task(userID, task, ActionView); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, userID uuid.UUID, opts repositories.ListOptions) ([]models.Task, int64, error) {
	return s.tasks.ListForUser(ctx, userID, opts)
}

func (s *TaskServiceImpl) ListProjectTasks(ctx context.Context, projectID, userID uuid.UUID) ([]models.Task, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrNotFound
	}
	if err := s.policy.Project(userID, project, ActionView); err != nil {
		return nil, err
	}
	return s.tasks.ListByProject(ctx, projectID)
}

// UpdateTask applies leader-only changes. The access code and password are
// not part of TaskUpdate and cannot change.
func (s *TaskServiceImpl) UpdateTask(ctx context.Context, id, userID uuid.UUID, update repositories.TaskUpdate) (*models.Task, error) {
	if err := validateTaskUpdate(&update); err != nil {
		return nil, err
	}
	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Task(userID, task, ActionEdit); err != nil {
		return nil, err
	}
	if update.ProjectID != nil {
		if err := s.checkProject(ctx, *update.ProjectID, userID); err != nil {
			return nil, err
		}
	}

	updated, err := s.tasks.Update(ctx, id, update)
	if err != nil {
		return nil, fromStore(err)
	}
	return updated, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id, userID uuid.UUID) error {
	task, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.Task(userID, task, ActionDelete); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return fromStore(err)
	}
	s.logger.Info("task deleted", slog.String("task_id", id.String()), slog.String("user_id", userID.String()))
	return nil
}
