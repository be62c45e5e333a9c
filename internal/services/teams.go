package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

type TeamService interface {
	CreateTeam(ctx context.Context, creatorID uuid.UUID, name, description string) (*models.Team, error)
	GetTeam(ctx context.Context, id, userID uuid.UUID) (*models.Team, error)
	ListTeams(ctx context.Context) ([]models.Team, error)
	UpdateTeam(ctx context.Context, id, userID uuid.UUID, update repositories.TeamUpdate) (*models.Team, error)
	DeleteTeam(ctx context.Context, id, userID uuid.UUID) error
	AddMember(ctx context.Context, id, userID, newMemberID uuid.UUID) (*models.Team, error)
	RemoveMember(ctx context.Context, id, userID, memberID uuid.UUID) (*models.Team, error)
}

type TeamServiceImpl struct {
	teams  repositories.TeamRepository
	users  repositories.UserRepository
	policy *AccessPolicy
	logger *slog.Logger
}

func NewTeamService(teams repositories.TeamRepository, users repositories.UserRepository, policy *AccessPolicy, logger *slog.Logger) *TeamServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = NewAccessPolicy(logger)
	}
	return &TeamServiceImpl{teams: teams, users: users, policy: policy, logger: logger}
}

func (s *TeamServiceImpl) CreateTeam(ctx context.Context, creatorID uuid.UUID, name, description string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidInput("name is required")
	}

	team := &models.Team{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   creatorID,
	}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, err
	}
	s.logger.Info("team created", slog.String("team_id", team.ID.String()), slog.String("user_id", creatorID.String()))
	return team, nil
}

func (s *TeamServiceImpl) load(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	team, err := s.teams.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrNotFound
	}
	return team, nil
}

// authorize loads the team and applies the policy for action.
func (s *TeamServiceImpl) authorize(ctx context.Context, id, userID uuid.UUID, action Action) (*models.Team, error) {
	team, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Team(userID, team, action); err != nil {
		return nil, err
	}
	return team, nil
}

func (s *TeamServiceImpl) GetTeam(ctx context.Context, id, userID uuid.UUID) (*models.Team, error) {
	return s.authorize(ctx, id, userID, ActionView)
}

func (s *TeamServiceImpl) ListTeams(ctx context.Context) ([]models.Team, error) {
	return s.teams.List(ctx)
}

func (s *TeamServiceImpl) UpdateTeam(ctx context.Context, id, userID uuid.UUID, update repositories.TeamUpdate) (*models.Team, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, invalidInput("name cannot be empty")
		}
		update.Name = &name
	}
	if _, err := s.authorize(ctx, id, userID, ActionEdit); err != nil {
		return nil, err
	}

	team, err := s.teams.Update(ctx, id, update)
	if err != nil {
		return nil, fromStore(err)
	}
	return team, nil
}

func (s *TeamServiceImpl) DeleteTeam(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.authorize(ctx, id, userID, ActionDelete); err != nil {
		return err
	}
	if err := s.teams.Delete(ctx, id); err != nil {
		return fromStore(err)
	}
	s.logger.Info("team deleted", slog.String("team_id", id.String()), slog.String("user_id", userID.String()))
	return nil
}

// AddMember puts an existing user on the team. Only current members may add
// others.
func (s *TeamServiceImpl) AddMember(ctx context.Context, id, userID, newMemberID uuid.UUID) (*models.Team, error) {
	if _, err := s.authorize(ctx, id, userID, ActionEdit); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, newMemberID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	team, err := s.teams.AddMemberIfAbsent(ctx, id, newMemberID)
	switch {
	case errors.Is(err, repositories.ErrAlreadyPresent):
		return nil, ErrAlreadyMember
	case err != nil:
		return nil, fromStore(err)
	}
	s.logger.Info("team member added",
		slog.String("team_id", id.String()),
		slog.String("user_id", newMemberID.String()),
		slog.String("added_by", userID.String()),
	)
	return team, nil
}

// RemoveMember takes memberID off the team. The last member cannot be
// removed; delete the team instead.
func (s *TeamServiceImpl) RemoveMember(ctx context.Context, id, userID, memberID uuid.UUID) (*models.Team, error) {
	team, err := s.authorize(ctx, id, userID, ActionEdit)
	if err != nil {
		return nil, err
	}
	if !team.HasMember(memberID) {
		return nil, ErrNotFound
	}
	if len(team.Members) == 1 {
		return nil, invalidInput("a team needs at least one member")
	}

	updated, err := s.teams.RemoveMember(ctx, id, memberID)
	if err != nil {
		return nil, fromStore(err)
	}
	s.logger.Info("team member removed",
		slog.String("team_id", id.String()),
		slog.String("user_id", memberID.String()),
		slog.String("removed_by", userID.String()),
	)
	return updated, nil
}
