package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"github.com/postpilot-hq/postpilot/internal/domain/repositories"
	"gorm.io/gorm"
)

// GormStore backs the engine's store contracts with the shared repositories.
type GormStore struct {
	schedules *repositories.ScheduleRepository
	posts     *repositories.PostRepository
	activity  *repositories.ActivityRepository
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		schedules: repositories.NewScheduleRepository(db),
		posts:     repositories.NewPostRepository(db),
		activity:  repositories.NewActivityRepository(db),
	}
}

func (s *GormStore) GetDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	return s.schedules.FindDue(ctx, now, limit)
}

func (s *GormStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	return s.schedules.FindByID(ctx, id)
}

func (s *GormStore) RecordRun(ctx context.Context, id uuid.UUID, ranAt time.Time, nextRun *time.Time, postID *uuid.UUID, deactivate bool) error {
	return s.schedules.RecordRun(ctx, id, ranAt, nextRun, postID, deactivate)
}

func (s *GormStore) Create(ctx context.Context, post *models.Post) error {
	return s.posts.Create(ctx, post)
}

func (s *GormStore) AttachRemoteID(ctx context.Context, id uuid.UUID, remoteID string) error {
	return s.posts.AttachRemoteID(ctx, id, remoteID)
}

func (s *GormStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.posts.MarkFailed(ctx, id, errMsg)
}

func (s *GormStore) Append(ctx context.Context, entry *models.ActivityLog) error {
	return s.activity.Create(ctx, entry)
}
