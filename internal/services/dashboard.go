package services

import (
	"context"

	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

const (
	recentProjectsLimit   = 5
	recentActivitiesLimit = 10
)

type DashboardStats struct {
	TotalProjects    int64 `json:"total_projects"`
	ActiveProjects   int64 `json:"active_projects"`
	CompletedTasks   int64 `json:"completed_tasks"`
	TotalTeamMembers int64 `json:"total_team_members"`
}

type Dashboard struct {
	Stats            DashboardStats    `json:"stats"`
	RecentProjects   []models.Project  `json:"recent_projects"`
	RecentActivities []models.Activity `json:"recent_activities"`
}

type DashboardService interface {
	GetDashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error)
}

type DashboardServiceImpl struct {
	projects   repositories.ProjectRepository
	tasks      repositories.TaskRepository
	activities repositories.ActivityRepository
}

func NewDashboardService(projects repositories.ProjectRepository, tasks repositories.TaskRepository, activities repositories.ActivityRepository) *DashboardServiceImpl {
	return &DashboardServiceImpl{projects: projects, tasks: tasks, activities: activities}
}

func (s *DashboardServiceImpl) GetDashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	var (
		d   Dashboard
		err error
	)

	if d.Stats.TotalProjects, err = s.projects.CountForUser(ctx, userID, ""); err != nil {
		return nil, err
	}
	if d.Stats.ActiveProjects, err = s.projects.CountForUser(ctx, userID, models.ProjectStatusInProgress); err != nil {
		return nil, err
	}
	if d.Stats.TotalTeamMembers, err = s.projects.CountTeamMembers(ctx, userID); err != nil {
		return nil, err
	}
	if d.Stats.CompletedTasks, err = s.tasks.CountCompletedForUser(ctx, userID); err != nil {
		return nil, err
	}

	if d.RecentProjects, err = s.projects.ListForUser(ctx, userID, recentProjectsLimit); err != nil {
		return nil, err
	}

	projectIDs, err := s.projects.ProjectIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if d.RecentActivities, err = s.activities.Recent(ctx, userID, projectIDs, recentActivitiesLimit); err != nil {
		return nil, err
	}

	if d.RecentProjects == nil {
		d.RecentProjects = []models.Project{}
	}
	if d.RecentActivities == nil {
		d.RecentActivities = []models.Activity{}
	}
	return &d, nil
}
