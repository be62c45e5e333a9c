package services

import (
	"context"

	"taskhub/backend/internal/cache"
	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

// CachedTaskService serves task reads by ID from Redis and drops the cached
// entry after every change to the task or its membership.
type CachedTaskService struct {
	TaskService
	cache  *cache.TaskCache
	policy *AccessPolicy
}

func NewCachedTaskService(taskService TaskService, taskCache *cache.TaskCache, policy *AccessPolicy) *CachedTaskService {
	if policy == nil {
		policy = NewAccessPolicy(nil)
	}
	return &CachedTaskService{
		TaskService: taskService,
		cache:       taskCache,
		policy:      policy,
	}
}

func (s *CachedTaskService) GetTask(ctx context.Context, id, userID uuid.UUID) (*models.Task, error) {
	if task, ok := s.cache.Get(ctx, id); ok {
		if err := s.policy.Task(userID, task, ActionView); err != nil {
			return nil, err
		}
		return task, nil
	}

	task, err := s.TaskService.GetTask(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, task)
	return task, nil
}

func (s *CachedTaskService) JoinTask(ctx context.Context, code, password string, userID uuid.UUID) (*models.Task, error) {
	task, err := s.TaskService.JoinTask(ctx, code, password, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, task.ID)
	return task, nil
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, id, userID uuid.UUID, update repositories.TaskUpdate) (*models.Task, error) {
	task, err := s.TaskService.UpdateTask(ctx, id, userID, update)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, id)
	return task, nil
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.TaskService.DeleteTask(ctx, id, userID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

func (s *CachedTaskService) GetCacheStats() map[string]interface{} {
	return s.cache.Stats()
}
