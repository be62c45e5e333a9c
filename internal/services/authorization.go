package services

import (
	"fmt"
	"log/slog"

	"taskhub/backend/internal/models"

	"github.com/gofrs/uuid"
)

type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// AccessPolicy decides what a user may do with a task, project or team. For
// tasks and projects members may view while only the task leader or project
// owner may change or delete.
type AccessPolicy struct {
	logger *slog.Logger
}

func NewAccessPolicy(logger *slog.Logger) *AccessPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessPolicy{logger: logger}
}

func (p *AccessPolicy) Task(userID uuid.UUID, task *models.Task, action Action) error {
	var allowed bool
	switch action {
	case ActionView:
		allowed = task.HasMember(userID)
	case ActionEdit, ActionDelete:
		allowed = task.IsLeader(userID)
	}
	return p.decide(allowed, "task", task.ID, userID, action)
}

func (p *AccessPolicy) Project(userID uuid.UUID, project *models.Project, action Action) error {
	var allowed bool
	switch action {
	case ActionView:
		allowed = project.HasMember(userID)
	case ActionEdit, ActionDelete:
		allowed = project.OwnerID == userID
	}
	return p.decide(allowed, "project", project.ID, userID, action)
}

// Team lets any authenticated user view a team; changes are open to members.
func (p *AccessPolicy) Team(userID uuid.UUID, team *models.Team, action Action) error {
	allowed := action == ActionView || team.HasMember(userID)
	return p.decide(allowed, "team", team.ID, userID, action)
}

func (p *AccessPolicy) decide(allowed bool, resource string, resourceID, userID uuid.UUID, action Action) error {
	if allowed {
		return nil
	}
	p.logger.Info("access denied",
		slog.String("resource", resource),
		slog.String("resource_id", resourceID.String()),
		slog.String("user_id", userID.String()),
		slog.String("action", string(action)),
	)
	return fmt.Errorf("%w: cannot %s %s", ErrForbidden, action, resource)
}
