package worker

import (
	"context"
	"fmt"
	"time"

	"taskhub/backend/internal/models"
	"taskhub/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

// MemberJoinedPayload encodes an activity for a member_joined job.
func MemberJoinedPayload(activity models.Activity) map[string]interface{} {
	payload := map[string]interface{}{
		"type":        activity.Type,
		"description": activity.Description,
		"user_id":     activity.UserID.String(),
		"timestamp":   activity.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if activity.TaskID != nil {
		payload["task_id"] = activity.TaskID.String()
	}
	if activity.ProjectID != nil {
		payload["project_id"] = activity.ProjectID.String()
	}
	return payload
}

// ActivityFromPayload is the inverse of MemberJoinedPayload.
func ActivityFromPayload(payload map[string]interface{}) (models.Activity, error) {
	var activity models.Activity

	activity.Type, _ = payload["type"].(string)
	activity.Description, _ = payload["description"].(string)
	if activity.Type == "" {
		return activity, fmt.Errorf("payload missing type")
	}

	userID, err := payloadUUID(payload, "user_id")
	if err != nil || userID == nil {
		return activity, fmt.Errorf("payload user_id: %w", orMissing(err))
	}
	activity.UserID = *userID

	if activity.TaskID, err = payloadUUID(payload, "task_id"); err != nil {
		return activity, fmt.Errorf("payload task_id: %w", err)
	}
	if activity.ProjectID, err = payloadUUID(payload, "project_id"); err != nil {
		return activity, fmt.Errorf("payload project_id: %w", err)
	}

	if raw, ok := payload["timestamp"].(string); ok && raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return activity, fmt.Errorf("payload timestamp: %w", err)
		}
		activity.Timestamp = ts
	}
	return activity, nil
}

// MemberJoinedHandler persists the activity carried by a member_joined job.
func MemberJoinedHandler(activities repositories.ActivityRepository) JobHandler {
	return func(ctx context.Context, job *Job) error {
		activity, err := ActivityFromPayload(job.Payload)
		if err != nil {
			return err
		}
		return activities.Create(ctx, &activity)
	}
}

func payloadUUID(payload map[string]interface{}, key string) (*uuid.UUID, error) {
	raw, ok := payload[key].(string)
	if !ok || raw == "" {
		return nil, nil
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func orMissing(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("missing")
}
