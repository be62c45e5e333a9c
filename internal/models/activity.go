package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	ActivityTaskJoined    = "task_joined"
	ActivityProjectJoined = "project_joined"
)

// Activity is one entry of the dashboard feed.
type Activity struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Type        string     `json:"type" gorm:"not null"`
	Description string     `json:"description"`
	UserID      uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	TaskID      *uuid.UUID `json:"task_id,omitempty" gorm:"type:uuid;index"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty" gorm:"type:uuid;index"`
	Timestamp   time.Time  `json:"timestamp" gorm:"not null;index"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		a.ID = id
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	return nil
}
