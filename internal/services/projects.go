package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

type ProjectInput struct {
	Title       string
	Description string
	Status      string
	Deadline    *time.Time
	MemberIDs   []uuid.UUID
}

type ProjectService interface {
	CreateProject(ctx context.Context, ownerID uuid.UUID, input ProjectInput) (*models.Project, error)
	GetProject(ctx context.Context, id, userID uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	UpdateProject(ctx context.Context, id, userID uuid.UUID, update repositories.ProjectUpdate) (*models.Project, error)
	DeleteProject(ctx context.Context, id, userID uuid.UUID) error
	JoinProject(ctx context.Context, id, userID uuid.UUID) (*models.Project, error)
}

type ProjectServiceImpl struct {
	projects repositories.ProjectRepository
	policy   *AccessPolicy
	activity ActivityRecorder
	logger   *slog.Logger
}

func NewProjectService(projects repositories.ProjectRepository, policy *AccessPolicy, activity ActivityRecorder, logger *slog.Logger) *ProjectServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = NewAccessPolicy(logger)
	}
	return &ProjectServiceImpl{projects: projects, policy: policy, activity: activity, logger: logger}
}

func (s *ProjectServiceImpl) CreateProject(ctx context.Context, ownerID uuid.UUID, input ProjectInput) (*models.Project, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.Title == "" {
		return nil, invalidInput("title is required")
	}
	if input.Description == "" {
		return nil, invalidInput("description is required")
	}
	if input.Status == "" {
		input.Status = models.ProjectStatusNotStarted
	}
	if !models.ValidProjectStatus(input.Status) {
		return nil, invalidInput("invalid status %q", input.Status)
	}

	project := &models.Project{
		Title:       input.Title,
		Description: input.Description,
		OwnerID:     ownerID,
		Deadline:    input.Deadline,
		Status:      input.Status,
	}
	for _, id := range input.MemberIDs {
		project.Members = append(project.Members, models.ProjectMember{UserID: id})
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("project created", slog.String("project_id", project.ID.String()), slog.String("owner_id", ownerID.String()))
	return project, nil
}

func (s *ProjectServiceImpl) load(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}

func (s *ProjectServiceImpl) GetProject(ctx context.Context, id, userID uuid.UUID) (*models.Project, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Project(userID, project, ActionView); err != nil {
		return nil, err
	}
	return project, nil
}

// ListProjects returns the projects userID owns or belongs to.
func (s *ProjectServiceImpl) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	return s.projects.ListForUser(ctx, userID, 0)
}

func (s *ProjectServiceImpl) UpdateProject(ctx context.Context, id, userID uuid.UUID, update repositories.ProjectUpdate) (*models.Project, error) {
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, invalidInput("title cannot be empty")
		}
		update.Title = &title
	}
	if update.Status != nil && !models.ValidProjectStatus(*update.Status) {
		return nil, invalidInput("invalid status %q", *update.Status)
	}

	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Project(userID, project, ActionEdit); err != nil {
		return nil, err
	}

	updated, err := s.projects.Update(ctx, id, update)
	if err != nil {
		return nil, fromStore(err)
	}
	return updated, nil
}

func (s *ProjectServiceImpl) DeleteProject(ctx context.Context, id, userID uuid.UUID) error {
	project, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.policy.Project(userID, project, ActionDelete); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return fromStore(err)
	}
	s.logger.Info("project deleted", slog.String("project_id", id.String()), slog.String("user_id", userID.String()))
	return nil
}

func (s *ProjectServiceImpl) JoinProject(ctx context.Context, id, userID uuid.UUID) (*models.Project, error) {
	project, err := s.projects.AddMemberIfAbsent(ctx, id, userID)
	switch {
	case errors.Is(err, repositories.ErrAlreadyPresent):
		return nil, ErrAlreadyMember
	case err != nil:
		return nil, fromStore(err)
	}

	if s.activity != nil {
		s.activity.Record(ctx, models.Activity{
			Type:        models.ActivityProjectJoined,
			Description: fmt.Sprintf("joined project %q", project.Title),
			UserID:      userID,
			ProjectID:   &project.ID,
		})
	}
	return project, nil
}
