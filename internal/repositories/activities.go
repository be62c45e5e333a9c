package repositories

import (
	"context"

	"taskhub/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	Recent(ctx context.Context, userID uuid.UUID, projectIDs []uuid.UUID, limit int) ([]models.Activity, error)
}

type GormActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *GormActivityRepository {
	return &GormActivityRepository{db: db}
}

func (r *GormActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return classify("create activity", r.db.WithContext(ctx).Create(activity).Error)
}

// Recent returns the newest activities by the user or inside any of the
// given projects.
func (r *GormActivityRepository) Recent(ctx context.Context, userID uuid.UUID, projectIDs []uuid.UUID, limit int) ([]models.Activity, error) {
	query := r.db.WithContext(ctx).Order("timestamp DESC")
	if len(projectIDs) > 0 {
		query = query.Where("user_id = ? OR project_id IN ?", userID, projectIDs)
	} else {
		query = query.Where("user_id = ?", userID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var activities []models.Activity
	if err := query.Find(&activities).Error; err != nil {
		return nil, classify("list activities", err)
	}
	return activities, nil
}
