package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Team struct {
	ID          uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	Name        string       `json:"name" gorm:"not null"`
	Description string       `json:"description"`
	CreatedBy   uuid.UUID    `json:"created_by" gorm:"type:uuid;not null;index"`
	Members     []TeamMember `json:"members" gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type TeamMember struct {
	TeamID   uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey;index"`
	JoinedAt time.Time `json:"joined_at" gorm:"not null"`
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	if t.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id
	}
	return nil
}

func (m *TeamMember) BeforeCreate(tx *gorm.DB) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	return nil
}

func (t *Team) HasMember(userID uuid.UUID) bool {
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
