package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskhub/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var taskSortColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"status":     true,
	"priority":   true,
	"due_date":   true,
	"deadline":   true,
}

type ListOptions struct {
	SortBy   string
	Order    string
	Page     int
	PageSize int
}

// Normalize fills defaults and clamps values that would otherwise reach SQL.
func (o ListOptions) Normalize() ListOptions {
	if !taskSortColumns[o.SortBy] {
		o.SortBy = "created_at"
	}
	o.Order = strings.ToLower(o.Order)
	if o.Order != "asc" {
		o.Order = "desc"
	}
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	return o
}

// TaskUpdate carries the mutable task fields. The access code and password
// are deliberately absent.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	Progress    *int
	DueDate     *time.Time
	Deadline    *time.Time
	AssignedTo  *uuid.UUID
	ProjectID   *uuid.UUID
}

func (u TaskUpdate) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Title != nil {
		cols["title"] = *u.Title
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.Status != nil {
		cols["status"] = *u.Status
		if *u.Status == models.TaskStatusCompleted {
			cols["completed_at"] = time.Now()
		} else {
			cols["completed_at"] = nil
		}
	}
	if u.Priority != nil {
		cols["priority"] = *u.Priority
	}
	if u.Progress != nil {
		cols["progress"] = *u.Progress
	}
	if u.DueDate != nil {
		cols["due_date"] = *u.DueDate
	}
	if u.Deadline != nil {
		cols["deadline"] = *u.Deadline
	}
	if u.AssignedTo != nil {
		cols["assigned_to"] = *u.AssignedTo
	}
	if u.ProjectID != nil {
		cols["project_id"] = *u.ProjectID
	}
	return cols
}

type TaskRepository interface {
	ExistsByCode(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, task *models.Task) error
	FindByCode(ctx context.Context, code string) (*models.Task, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListForUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]models.Task, int64, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error)
	CountCompletedForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	Update(ctx context.Context, id uuid.UUID, update TaskUpdate) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AppendMemberIfAbsent(ctx context.Context, taskID uuid.UUID, member models.TaskMember) (*models.Task, error)
}

type GormTaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

func (r *GormTaskRepository) withMembers(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Preload("Attachments")
}

func (r *GormTaskRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	if err := ctxErr("exists by code", ctx.Err()); err != nil {
		return false, err
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Task{}).Where("access_code = ?", code).Count(&count).Error
	if err != nil {
		return false, classify("exists by code", err)
	}
	return count > 0, nil
}

// Insert stores the task together with its leader membership row. A unique
// violation on the task row can only come from the access code index and is
// reported as ErrDuplicateCode.
func (r *GormTaskRepository) Insert(ctx context.Context, task *models.Task) error {
	if err := ctxErr("insert task", ctx.Err()); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("%w: %w", ErrDuplicateCode, err)
			}
			return err
		}

		leader := models.TaskMember{
			TaskID: task.ID,
			UserID: task.LeaderID,
			Role:   models.MemberRoleLeader,
		}
		if err := tx.Create(&leader).Error; err != nil {
			return err
		}
		task.Members = []models.TaskMember{leader}
		return nil
	})
	return classify("insert task", err)
}

// FindByCode returns nil, nil when no task carries the code.
func (r *GormTaskRepository) FindByCode(ctx context.Context, code string) (*models.Task, error) {
	if err := ctxErr("find by code", ctx.Err()); err != nil {
		return nil, err
	}
	var task models.Task
	err := r.withMembers(ctx).Where("access_code = ?", code).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find by code", err)
	}
	return &task, nil
}

// FindByID returns nil, nil when the task does not exist.
func (r *GormTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if err := ctxErr("find task", ctx.Err()); err != nil {
		return nil, err
	}
	var task models.Task
	err := r.withMembers(ctx).First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find task", err)
	}
	return &task, nil
}

func (r *GormTaskRepository) memberScope(userID uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(leader_id = ? OR id IN (?))", userID,
			r.db.Model(&models.TaskMember{}).Select("task_id").Where("user_id = ?", userID))
	}
}

func (r *GormTaskRepository) ListForUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]models.Task, int64, error) {
	if err := ctxErr("list tasks", ctx.Err()); err != nil {
		return nil, 0, err
	}
	opts = opts.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Task{}).Scopes(r.memberScope(userID)).Count(&total).Error; err != nil {
		return nil, 0, classify("count tasks", err)
	}

	var tasks []models.Task
	err := r.withMembers(ctx).
		Scopes(r.memberScope(userID)).
		Order(fmt.Sprintf("%s %s", opts.SortBy, opts.Order)).
		Offset((opts.Page - 1) * opts.PageSize).
		Limit(opts.PageSize).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, classify("list tasks", err)
	}
	return tasks, total, nil
}

func (r *GormTaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error) {
	if err := ctxErr("list project tasks", ctx.Err()); err != nil {
		return nil, err
	}
	var tasks []models.Task
	err := r.withMembers(ctx).Where("project_id = ?", projectID).Order("created_at DESC").Find(&tasks).Error
	if err != nil {
		return nil, classify("list project tasks", err)
	}
	return tasks, nil
}

// CountCompletedForUser counts completed tasks the user created or was
// assigned.
func (r *GormTaskRepository) CountCompletedForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := ctxErr("count completed tasks", ctx.Err()); err != nil {
		return 0, err
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("(assigned_to = ? OR created_by = ?) AND status = ?", userID, userID, models.TaskStatusCompleted).
		Count(&count).Error
	if err != nil {
		return 0, classify("count completed tasks", err)
	}
	return count, nil
}

func (r *GormTaskRepository) Update(ctx context.Context, id uuid.UUID, update TaskUpdate) (*models.Task, error) {
	if err := ctxErr("update task", ctx.Err()); err != nil {
		return nil, err
	}

	cols := update.columns()
	if len(cols) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Task{ID: id}).Updates(cols)
		if res.Error != nil {
			return nil, classify("update task", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	task, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrNotFound
	}
	return task, nil
}

// Delete removes the task with its members and attachments, which frees the
// access code for reuse.
func (r *GormTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctxErr("delete task", ctx.Err()); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskAttachment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Task{}, "id = ?", id)
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
	return classify("delete task", err)
}

// AppendMemberIfAbsent adds the member row unless one already exists for the
// same (task, user) pair. The check and the write are a single statement, so
// concurrent joins by the same user leave exactly one row.
func (r *GormTaskRepository) AppendMemberIfAbsent(ctx context.Context, taskID uuid.UUID, member models.TaskMember) (*models.Task, error) {
	if err := ctxErr("append member", ctx.Err()); err != nil {
		return nil, err
	}
	member.TaskID = taskID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Task{}).Where("id = ?", taskID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&member)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyPresent
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify("append member", err)
	}

	task, err := r.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrNotFound
	}
	return task, nil
}
