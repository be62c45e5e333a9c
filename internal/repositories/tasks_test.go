package repositories_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"taskhub/backend/internal/database/dbtest"
	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(leader uuid.UUID, code string) *models.Task {
	return &models.Task{
		Title:          "Task " + code,
		CreatedBy:      leader,
		LeaderID:       leader,
		Status:         models.TaskStatusPending,
		Priority:       models.TaskPriorityMedium,
		AccessCode:     code,
		AccessPassword: "hashed",
	}
}

func newID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

func TestTaskRepository_InsertStoresLeaderMembership(t *testing.T) {
	repo := repositories.NewTaskRepository(dbtest.Open(t))
	ctx := context.Background()
	leader := newID()

	task := newTask(leader, "ABC123")
	require.NoError(t, repo.Insert(ctx, task))
	require.False(t, task.ID.IsNil())

	found, err := repo.FindByCode(ctx, "ABC123")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, task.ID, found.ID)
	require.Len(t, found.Members, 1)
	assert.Equal(t, leader, found.Members[0].UserID)
	assert.Equal(t, models.MemberRoleLeader, found.Members[0].Role)

	exists, err := repo.ExistsByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByCode(ctx, "ZZZ999")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTaskRepository_InsertDuplicateCode(t *testing.T) {
	repo := repositories.NewTaskRepository(dbtest.Open(t))
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newTask(newID(), "DUP001")))

	err := repo.Insert(ctx, newTask(newID(), "DUP001"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, repositories.ErrDuplicateCode), "got %v", err)

	tasks, total, err := repo.ListForUser(ctx, newID(), repositories.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Zero(t, total)
}

func TestTaskRepository_FindMissingReturnsNil(t *testing.T) {
	repo := repositories.NewTaskRepository(dbtest.Open(t))
	ctx := context.Background()

	task, err := repo.FindByCode(ctx, "NOPE00")
	assert.NoError(t, err)
	assert.Nil(t, task)

	task, err = repo.FindByID(ctx, newID())
	assert.NoError(t, err)
	assert.Nil(t, task)
}

func TestTaskRepository_AppendMemberIfAbsent(t *testing.T) {
	repo := repositories.NewTaskRepository(dbtest.Open(t))
	ctx := context.Background()
	task := newTask(newID(), "JOIN01")
	require.NoError(t, repo.Insert(ctx, task))

	user := newID()
	updated, err := repo.AppendMemberIfAbsent(ctx, task.ID, models.TaskMember{UserID: user, Role: models.MemberRoleMember})
	require.NoError(t, err)
	require.Len(t, updated.Members, 2)
	assert.Equal(t, user, updated.Members[1].UserID)
	assert.Equal(t, models.MemberRoleMember, updated.Members[1].Role)

	_, err = repo.AppendMemberIfAbsent(ctx, task.ID, models.TaskMember{UserID: user, Role: models.MemberRoleMember})
	assert.ErrorIs(t, err, repositories.ErrAlreadyPresent)

	reloaded, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Members, 2)

	_, err = repo.AppendMemberIfAbsent(ctx, newID(), models.TaskMember{UserID: user})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestTaskRepository_ConcurrentAppendKeepsOneRow(t *testing.T) {
	repo := repositories.NewTaskRepository(dbtest.Open(t))
	ctx := context.Background()
	task := newTask(newID(), "RACE01")
	require.NoError(t, repo.Insert(ctx, task))

	user := newID()
	var succeeded, present int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AppendMemberIfAbsent(ctx, task.ID, models.TaskMember{UserID: user, Role: models.MemberRoleMember})
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case errors.Is(err, repositories.ErrAlreadyPresent):
				atomic.AddInt32(&present, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded)
	assert.Equal(t, int32(7), present)

	reloaded, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Members, 2)
}

func TestTaskRepository_ListForUser(t *testing.T) {
	repo := repositories.NewTaskRepository(dbtest.Open(t))
	ctx := context.Background()
	leader := newID()
	member := newID()

	codes := []string{"LIST01", "LIST02", "LIST03"}
	for _, code := range codes {
		require.NoError(t, repo.Insert(ctx, newTask(leader, code)))
	}
	other := newTask(newID(), "LIST04")
	require.NoError(t, repo.Insert(ctx, other))
	_, err := repo.AppendMemberIfAbsent(ctx, other.ID, models.TaskMember{UserID: member, Role: models.MemberRoleMember})
	require.NoError(t, err)

	tasks, total, err := repo.ListForUser(ctx, leader, repositories.ListOptions{PageSize: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, tasks, 2)

	tasks, _, err = repo.ListForUser(ctx, leader, repositories.ListOptions{PageSize: 2, Page: 2})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	tasks, total, err = repo.ListForUser(ctx, member, repositories.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tasks, 1)
	assert.Equal(t, other.ID, tasks[0].ID)
}

func TestListOptions_Normalize(t *testing.T) {
	opts := repositories.ListOptions{SortBy: "password; DROP TABLE tasks", Order: "sideways", Page: -3, PageSize: 1000}.Normalize()

	assert.Equal(t, "created_at", opts.SortBy)
	assert.Equal(t, "desc", opts.Order)
	assert.Equal(t, 1, opts.Page)
	assert.Equal(t, repositories.MaxPageSize, opts.PageSize)

	opts = repositories.ListOptions{SortBy: "title", Order: "ASC"}.Normalize()
	assert.Equal(t, "title", opts.SortBy)
	assert.Equal(t, "asc", opts.Order)
	assert.Equal(t, repositories.DefaultPageSize, opts.PageSize)
}

func TestTaskRepository_UpdateKeepsAccessCode(t *testing.T) {
	repo := repositories.NewTaskRepository(dbtest.Open(t))
	ctx := context.Background()
	task := newTask(newID(), "KEEP01")
	require.NoError(t, repo.Insert(ctx, task))

	title := "Renamed"
	status := models.TaskStatusCompleted
	updated, err := repo.Update(ctx, task.ID, repositories.TaskUpdate{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, models.TaskStatusCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
	assert.Equal(t, "KEEP01", updated.AccessCode)

	_, err = repo.Update(ctx, newID(), repositories.TaskUpdate{Title: &title})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestTaskRepository_DeleteFreesCode(t *testing.T) {
	repo := repositories.NewTaskRepository(dbtest.Open(t))
	ctx := context.Background()
	task := newTask(newID(), "FREE01")
	require.NoError(t, repo.Insert(ctx, task))

	require.NoError(t, repo.Delete(ctx, task.ID))

	exists, err := repo.ExistsByCode(ctx, "FREE01")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Insert(ctx, newTask(newID(), "FREE01")))

	assert.ErrorIs(t, repo.Delete(ctx, newID()), repositories.ErrNotFound)
}

func TestTaskRepository_ListByProjectAndCompletedCount(t *testing.T) {
	repo := repositories.NewTaskRepository(dbtest.Open(t))
	ctx := context.Background()
	leader := newID()
	projectID := newID()

	inProject := newTask(leader, "PROJ01")
	inProject.ProjectID = &projectID
	inProject.Status = models.TaskStatusCompleted
	require.NoError(t, repo.Insert(ctx, inProject))
	require.NoError(t, repo.Insert(ctx, newTask(leader, "PROJ02")))

	tasks, err := repo.ListByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, inProject.ID, tasks[0].ID)

	count, err := repo.CountCompletedForUser(ctx, leader)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTaskRepository_CancelledContext(t *testing.T) {
	repo := repositories.NewTaskRepository(dbtest.Open(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ExistsByCode(ctx, "ABC123")
	assert.ErrorIs(t, err, repositories.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)

	err = repo.Insert(ctx, newTask(newID(), "ABC123"))
	assert.ErrorIs(t, err, repositories.ErrCancelled)

	_, err = repo.FindByCode(ctx, "ABC123")
	assert.ErrorIs(t, err, repositories.ErrCancelled)

	count, err := repo.CountCompletedForUser(ctx, newID())
	assert.ErrorIs(t, err, repositories.ErrCancelled)
	assert.Zero(t, count)
}
