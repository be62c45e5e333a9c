package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	ProjectStatusNotStarted = "Not Started"
	ProjectStatusInProgress = "In Progress"
	ProjectStatusCompleted  = "Completed"
	ProjectStatusOnHold     = "On Hold"
)

var ProjectStatuses = []string{ProjectStatusNotStarted, ProjectStatusInProgress, ProjectStatusCompleted, ProjectStatusOnHold}

type Project struct {
	ID          uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string          `json:"title" gorm:"not null"`
	Description string          `json:"description" gorm:"not null"`
	OwnerID     uuid.UUID       `json:"owner_id" gorm:"type:uuid;not null;index"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	Status      string          `json:"status" gorm:"not null;default:'Not Started';index"`
	Members     []ProjectMember `json:"members" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProjectMember struct {
	ProjectID uuid.UUID `json:"-" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey;index"`
	JoinedAt  time.Time `json:"joined_at" gorm:"not null"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		p.ID = id
	}
	return nil
}

func (m *ProjectMember) BeforeCreate(tx *gorm.DB) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	return nil
}

func (p *Project) HasMember(userID uuid.UUID) bool {
	if p.OwnerID == userID {
		return true
	}
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func ValidProjectStatus(status string) bool {
	return contains(ProjectStatuses, status)
}
