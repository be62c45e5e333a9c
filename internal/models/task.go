package models

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	TaskStatusPending    = "Pending"
	TaskStatusInProgress = "In Progress"
	TaskStatusInReview   = "In Review"
	TaskStatusCompleted  = "Completed"

	TaskPriorityLow    = "Low"
	TaskPriorityMedium = "Medium"
	TaskPriorityHigh   = "High"
	TaskPriorityUrgent = "Urgent"

	MemberRoleLeader = "leader"
	MemberRoleMember = "member"
)

var ErrAccessCodeImmutable = errors.New("access code cannot be changed")

var (
	TaskStatuses   = []string{TaskStatusPending, TaskStatusInProgress, TaskStatusInReview, TaskStatusCompleted}
	TaskPriorities = []string{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent}
)

type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty" gorm:"type:uuid;index"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty" gorm:"type:uuid"`
	CreatedBy   uuid.UUID  `json:"created_by" gorm:"type:uuid;not null"`
	LeaderID    uuid.UUID  `json:"leader_id" gorm:"type:uuid;not null;index"`
	Status      string     `json:"status" gorm:"not null;default:'Pending'"`
	Priority    string     `json:"priority" gorm:"not null;default:'Medium'"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Progress    int        `json:"progress" gorm:"not null;default:0"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	AccessCode     string `json:"access_code" gorm:"size:6;not null;uniqueIndex:idx_tasks_access_code"`
	AccessPassword string `json:"-" gorm:"not null"`

	Members     []TaskMember     `json:"members" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	Attachments []TaskAttachment `json:"attachments,omitempty" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TaskMember struct {
	ID       uuid.UUID `json:"-" gorm:"primaryKey;type:uuid"`
	TaskID   uuid.UUID `json:"-" gorm:"type:uuid;not null;uniqueIndex:idx_task_member"`
	UserID   uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_task_member;index"`
	Role     string    `json:"role" gorm:"not null;default:'member'"`
	JoinedAt time.Time `json:"joined_at" gorm:"not null"`
}

type TaskAttachment struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	TaskID     uuid.UUID `json:"-" gorm:"type:uuid;not null;index"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	UploadedBy uuid.UUID `json:"uploaded_by" gorm:"type:uuid"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id
	}
	return nil
}

// BeforeUpdate rejects any write that would touch the access code after
// creation.
func (t *Task) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("AccessCode") {
		return ErrAccessCodeImmutable
	}
	return nil
}

func (m *TaskMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		m.ID = id
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	return nil
}

func (a *TaskAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		a.ID = id
	}
	return nil
}

func (t *Task) HasMember(userID uuid.UUID) bool {
	if t.LeaderID == userID {
		return true
	}
	for _, m := range t.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (t *Task) IsLeader(userID uuid.UUID) bool {
	return t.LeaderID == userID
}

func ValidTaskStatus(status string) bool {
	return contains(TaskStatuses, status)
}

func ValidTaskPriority(priority string) bool {
	return contains(TaskPriorities, priority)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
