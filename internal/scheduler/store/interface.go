package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
)

// ScheduleStore is the narrow persistence contract the engine needs: the due
// scan plus per-run bookkeeping writes.
type ScheduleStore interface {
	// GetDue fetches active schedules with next_run_at <= now, ordered by
	// next_run_at ascending.
	GetDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error)

	// GetByID fetches a single schedule.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error)

	// RecordRun advances last_run_at, run_count and next_run_at after an
	// execution. A nil nextRun clears the column; deactivate retires a
	// one-shot schedule without deleting it.
	RecordRun(ctx context.Context, id uuid.UUID, ranAt time.Time, nextRun *time.Time, postID *uuid.UUID, deactivate bool) error
}

// PostStore persists the artifacts a pipeline produces.
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	AttachRemoteID(ctx context.Context, id uuid.UUID, remoteID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// ActivityStore appends outcome log entries.
type ActivityStore interface {
	Append(ctx context.Context, entry *models.ActivityLog) error
}
