package services

import (
	"context"
	"log/slog"
	"time"

	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"
	"taskhub/backend/internal/worker"
)

type ActivityRecorder interface {
	Record(ctx context.Context, activity models.Activity)
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, queue string, jobType worker.JobType, payload map[string]interface{}) error
}

// ActivityFeed hands activities to the background worker and writes them
// directly when the queue is unavailable. Recording never fails the caller:
// the membership change it describes is already committed.
type ActivityFeed struct {
	queue  JobEnqueuer
	repo   repositories.ActivityRepository
	logger *slog.Logger
}

func NewActivityFeed(queue JobEnqueuer, repo repositories.ActivityRepository, logger *slog.Logger) *ActivityFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityFeed{queue: queue, repo: repo, logger: logger}
}

func (f *ActivityFeed) Record(ctx context.Context, activity models.Activity) {
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}

	if f.queue != nil {
		err := f.queue.Enqueue(ctx, worker.QueueActivity, worker.JobTypeMemberJoined, worker.MemberJoinedPayload(activity))
		if err == nil {
			return
		}
		f.logger.Warn("activity queue unavailable, recording synchronously",
			slog.String("type", activity.Type),
			slog.Any("error", err),
		)
	}

	if err := f.repo.Create(context.WithoutCancel(ctx), &activity); err != nil {
		f.logger.Error("record activity",
			slog.String("type", activity.Type),
			slog.String("user_id", activity.UserID.String()),
			slog.Any("error", err),
		)
	}
}
