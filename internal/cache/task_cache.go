package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskhub/backend/internal/models"

	"github.com/gofrs/uuid"
)

const DefaultTaskTTL = 30 * time.Minute

// TaskCache stores tasks by ID behind a circuit breaker. Every failure is
// swallowed and logged: the database stays the source of truth and callers
// fall through to it.
type TaskCache struct {
	store   *RedisCache
	breaker *CircuitBreaker
	metrics *CacheMetrics
	ttl     time.Duration
	logger  *slog.Logger
}

func NewTaskCache(store *RedisCache, breaker *CircuitBreaker, ttl time.Duration, logger *slog.Logger) *TaskCache {
	if breaker == nil {
		breaker = NewCircuitBreaker(nil)
	}
	if ttl <= 0 {
		ttl = DefaultTaskTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskCache{
		store:   store,
		breaker: breaker,
		metrics: NewCacheMetrics(),
		ttl:     ttl,
		logger:  logger,
	}
}

func TaskKey(id uuid.UUID) string {
	return fmt.Sprintf("task:%s", id)
}

// Get returns the cached task and true on a hit.
func (c *TaskCache) Get(ctx context.Context, id uuid.UUID) (*models.Task, bool) {
	var task models.Task
	err := c.breaker.Execute(func() error {
		return c.store.Get(ctx, TaskKey(id), &task)
	})
	switch {
	case err == nil:
		c.metrics.RecordHit()
		return &task, true
	case errors.Is(err, ErrCacheMiss):
		c.metrics.RecordMiss()
	default:
		c.metrics.RecordError()
		c.logger.Debug("task cache read failed", slog.String("task_id", id.String()), slog.Any("error", err))
	}
	return nil, false
}

func (c *TaskCache) Set(ctx context.Context, task *models.Task) {
	err := c.breaker.Execute(func() error {
		return c.store.Set(ctx, TaskKey(task.ID), task, c.ttl)
	})
	if err != nil {
		c.metrics.RecordError()
		c.logger.Debug("task cache write failed", slog.String("task_id", task.ID.String()), slog.Any("error", err))
		return
	}
	c.metrics.RecordSet()
}

func (c *TaskCache) Invalidate(ctx context.Context, id uuid.UUID) {
	err := c.breaker.Execute(func() error {
		return c.store.Delete(ctx, TaskKey(id))
	})
	if err != nil {
		c.metrics.RecordError()
		c.logger.Warn("task cache invalidation failed", slog.String("task_id", id.String()), slog.Any("error", err))
		return
	}
	c.metrics.RecordDelete()
}

func (c *TaskCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"metrics": c.metrics.Snapshot(),
		"breaker": c.breaker.GetStats(),
		"redis":   c.store.Stats(),
	}
}
