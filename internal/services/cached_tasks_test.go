package services_test

import (
	"context"
	"testing"
	"time"

	"taskhub/backend/internal/cache"
	"taskhub/backend/internal/database/dbtest"
	"taskhub/backend/internal/logger"
	"taskhub/backend/internal/repositories"
	"taskhub/backend/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newCachedTaskService(t *testing.T) (*services.CachedTaskService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := cache.NewRedisCache(&cache.CacheConfig{Addr: mr.Addr(), DialTimeout: time.Second, ReadTimeout: time.Second})
	t.Cleanup(func() { _ = store.Close() })

	db := dbtest.Open(t)
	tasks := repositories.NewTaskRepository(db)
	inner := services.NewTaskService(services.TaskServiceDeps{
		Tasks:       tasks,
		Projects:    repositories.NewProjectRepository(db),
		Credentials: services.NewBcryptCredentialStore(bcrypt.MinCost),
		Logger:      logger.Discard(),
	})
	taskCache := cache.NewTaskCache(store, nil, time.Minute, logger.Discard())
	return services.NewCachedTaskService(inner, taskCache, nil), mr
}

func TestCachedTaskService_ReadThroughAndInvalidate(t *testing.T) {
	service, mr := newCachedTaskService(t)
	ctx := context.Background()
	leader := newID()

	task, err := service.CreateTask(ctx, leader, services.CreateTaskInput{Title: "Original", AccessPassword: "pw"})
	require.NoError(t, err)

	_, err = service.GetTask(ctx, task.ID, leader)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.TaskKey(task.ID)))

	title := "Renamed"
	_, err = service.UpdateTask(ctx, task.ID, leader, repositories.TaskUpdate{Title: &title})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.TaskKey(task.ID)))

	got, err := service.GetTask(ctx, task.ID, leader)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
}

func TestCachedTaskService_CachedReadStillChecksAccess(t *testing.T) {
	service, _ := newCachedTaskService(t)
	ctx := context.Background()
	leader := newID()

	task, err := service.CreateTask(ctx, leader, services.CreateTaskInput{Title: "Private", AccessPassword: "pw"})
	require.NoError(t, err)
	_, err = service.GetTask(ctx, task.ID, leader)
	require.NoError(t, err)

	_, err = service.GetTask(ctx, task.ID, newID())
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestCachedTaskService_JoinInvalidatesMembership(t *testing.T) {
	service, mr := newCachedTaskService(t)
	ctx := context.Background()
	leader, joiner := newID(), newID()

	task, err := service.CreateTask(ctx, leader, services.CreateTaskInput{Title: "Team", AccessPassword: "pw"})
	require.NoError(t, err)
	_, err = service.GetTask(ctx, task.ID, leader)
	require.NoError(t, err)

	_, err = service.JoinTask(ctx, task.AccessCode, "pw", joiner)
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.TaskKey(task.ID)))

	got, err := service.GetTask(ctx, task.ID, joiner)
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)
}

func TestCachedTaskService_RedisDownFallsThrough(t *testing.T) {
	service, mr := newCachedTaskService(t)
	ctx := context.Background()
	leader := newID()

	task, err := service.CreateTask(ctx, leader, services.CreateTaskInput{Title: "Resilient", AccessPassword: "pw"})
	require.NoError(t, err)
	mr.Close()

	got, err := service.GetTask(ctx, task.ID, leader)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}
