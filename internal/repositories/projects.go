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

type ProjectUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Deadline    *time.Time
}

type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Project, error)
	CountForUser(ctx context.Context, userID uuid.UUID, status string) (int64, error)
	CountTeamMembers(ctx context.Context, userID uuid.UUID) (int64, error)
	ProjectIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, update ProjectUpdate) (*models.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddMemberIfAbsent(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error)
}

type GormProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *GormProjectRepository {
	return &GormProjectRepository{db: db}
}

func (r *GormProjectRepository) memberOf(userID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(owner_id = ? OR id IN (?))", userID,
			r.db.Model(&models.ProjectMember{}).Select("project_id").Where("user_id = ?", userID))
	}
}

// Create stores the project with the owner as its first member, followed by
// any members already listed on it. Duplicate user IDs are collapsed.
func (r *GormProjectRepository) Create(ctx context.Context, project *models.Project) error {
	requested := project.Members
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(project).Error; err != nil {
			return err
		}

		seen := map[uuid.UUID]bool{project.OwnerID: true}
		members := []models.ProjectMember{{ProjectID: project.ID, UserID: project.OwnerID, JoinedAt: time.Now()}}
		for _, m := range requested {
			if m.UserID.IsNil() || seen[m.UserID] {
				continue
			}
			seen[m.UserID] = true
			members = append(members, models.ProjectMember{ProjectID: project.ID, UserID: m.UserID, JoinedAt: time.Now()})
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}
		project.Members = members
		return nil
	})
	if err != nil {
		project.Members = requested
	}
	return classify("create project", err)
}

func (r *GormProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		First(&project, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find project", err)
	}
	return &project, nil
}

// ListForUser returns projects the user owns or belongs to, most recently
// updated first. A non-positive limit returns all of them.
func (r *GormProjectRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Project, error) {
	query := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Scopes(r.memberOf(userID)).
		Order("updated_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, classify("list projects", err)
	}
	return projects, nil
}

// CountForUser counts the user's projects, optionally filtered by status.
func (r *GormProjectRepository) CountForUser(ctx context.Context, userID uuid.UUID, status string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Project{}).Scopes(r.memberOf(userID))
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, classify("count projects", err)
	}
	return count, nil
}

// CountTeamMembers counts distinct users across every project the user is
// part of, the user included.
func (r *GormProjectRepository) CountTeamMembers(ctx context.Context, userID uuid.UUID) (int64, error) {
	ids, err := r.ProjectIDsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var count int64
	err = r.db.WithContext(ctx).Model(&models.ProjectMember{}).
		Where("project_id IN ?", ids).
		Distinct("user_id").
		Count(&count).Error
	if err != nil {
		return 0, classify("count team members", err)
	}
	return count, nil
}

func (r *GormProjectRepository) ProjectIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Project{}).
		Scopes(r.memberOf(userID)).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, classify("list project ids", err)
	}
	return ids, nil
}

func (r *GormProjectRepository) Update(ctx context.Context, id uuid.UUID, update ProjectUpdate) (*models.Project, error) {
	cols := make(map[string]interface{})
	if update.Title != nil {
		cols["title"] = *update.Title
	}
	if update.Description != nil {
		cols["description"] = *update.Description
	}
	if update.Status != nil {
		cols["status"] = *update.Status
	}
	if update.Deadline != nil {
		cols["deadline"] = *update.Deadline
	}

	if len(cols) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Project{ID: id}).Updates(cols)
		if res.Error != nil {
			return nil, classify("update project", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	project, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}

// Delete removes the project and its memberships. Tasks keep existing and
// lose their project reference.
func (r *GormProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Task{}).Where("project_id = ?", id).Update("project_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Project{}, "id = ?", id)
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
	return classify("delete project", err)
}

func (r *GormProjectRepository) AddMemberIfAbsent(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		member := models.ProjectMember{ProjectID: projectID, UserID: userID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyPresent
		}
		return tx.Model(&models.Project{ID: projectID}).Update("updated_at", time.Now()).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("add project member", err)
	}

	project, err := r.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}
