package repositories

import (
	"context"
	"errors"
	"time"

	"taskhub/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TeamUpdate struct {
	Name        *string
	Description *string
}

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	List(ctx context.Context) ([]models.Team, error)
	Update(ctx context.Context, id uuid.UUID, update TeamUpdate) (*models.Team, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddMemberIfAbsent(ctx context.Context, teamID, userID uuid.UUID) (*models.Team, error)
	RemoveMember(ctx context.Context, teamID, userID uuid.UUID) (*models.Team, error)
}

type GormTeamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) *GormTeamRepository {
	return &GormTeamRepository{db: db}
}

func (r *GormTeamRepository) withMembers(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") })
}

// Create stores the team with its creator as the first member.
func (r *GormTeamRepository) Create(ctx context.Context, team *models.Team) error {
	if err := ctxErr("create team", ctx.Err()); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(team).Error; err != nil {
			return err
		}
		creator := models.TeamMember{TeamID: team.ID, UserID: team.CreatedBy, JoinedAt: time.Now()}
		if err := tx.Create(&creator).Error; err != nil {
			return err
		}
		team.Members = []models.TeamMember{creator}
		return nil
	})
	return classify("create team", err)
}

// FindByID returns nil, nil when the team does not exist.
func (r *GormTeamRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	if err := ctxErr("find team", ctx.Err()); err != nil {
		return nil, err
	}
	var team models.Team
	err := r.withMembers(ctx).First(&team, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find team", err)
	}
	return &team, nil
}

func (r *GormTeamRepository) List(ctx context.Context) ([]models.Team, error) {
	if err := ctxErr("list teams", ctx.Err()); err != nil {
		return nil, err
	}
	var teams []models.Team
	if err := r.withMembers(ctx).Order("name ASC").Find(&teams).Error; err != nil {
		return nil, classify("list teams", err)
	}
	return teams, nil
}

func (r *GormTeamRepository) Update(ctx context.Context, id uuid.UUID, update TeamUpdate) (*models.Team, error) {
	if err := ctxErr("update team", ctx.Err()); err != nil {
		return nil, err
	}
	cols := make(map[string]interface{})
	if update.Name != nil {
		cols["name"] = *update.Name
	}
	if update.Description != nil {
		cols["description"] = *update.Description
	}

	if len(cols) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Team{ID: id}).Updates(cols)
		if res.Error != nil {
			return nil, classify("update team", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return r.reload(ctx, id)
}

func (r *GormTeamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctxErr("delete team", ctx.Err()); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", id).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Team{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return classify("delete team", err)
}

// AddMemberIfAbsent inserts the membership row, reporting ErrAlreadyPresent
// when the user is already on the team.
func (r *GormTeamRepository) AddMemberIfAbsent(ctx context.Context, teamID, userID uuid.UUID) (*models.Team, error) {
	if err := ctxErr("add team member", ctx.Err()); err != nil {
		return nil, err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Team{}).Where("id = ?", teamID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		member := models.TeamMember{TeamID: teamID, UserID: userID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyPresent
		}
		return tx.Model(&models.Team{ID: teamID}).Update("updated_at", time.Now()).Error
	})
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyPresent):
		return nil, err
	case err != nil:
		return nil, classify("add team member", err)
	}
	return r.reload(ctx, teamID)
}

// RemoveMember deletes the membership row. ErrNotFound means the user was not
// on the team.
func (r *GormTeamRepository) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) (*models.Team, error) {
	if err := ctxErr("remove team member", ctx.Err()); err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).Where("team_id = ? AND user_id = ?", teamID, userID).Delete(&models.TeamMember{})
	if res.Error != nil {
		return nil, classify("remove team member", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.reload(ctx, teamID)
}

func (r *GormTeamRepository) reload(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	team, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrNotFound
	}
	return team, nil
}
