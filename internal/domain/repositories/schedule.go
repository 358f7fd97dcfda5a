package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"gorm.io/gorm"
)

type ScheduleRepository struct {
	*BaseRepository[models.Schedule]
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{
		BaseRepository: NewBaseRepository[models.Schedule](db),
	}
}

func (r *ScheduleRepository) FindByUserID(ctx context.Context, userID uuid.UUID, opts *ListOptions) ([]models.Schedule, int64, error) {
	var schedules []models.Schedule
	var total int64

	query := r.DB().WithContext(ctx).Where("user_id = ?", userID)
	query.Model(&models.Schedule{}).Count(&total)

	if opts != nil {
		query = query.Offset(opts.Offset).Limit(opts.Limit).Order(opts.OrderBy + " " + opts.Order)
	}

	err := query.Find(&schedules).Error
	return schedules, total, err
}

// FindDue returns active schedules whose next run is at or before now,
// ordered by next_run_at ascending.
func (r *ScheduleRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	var schedules []models.Schedule
	err := r.DB().WithContext(ctx).
		Where("is_active = ? AND next_run_at <= ?", true, now).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&schedules).Error
	return schedules, err
}

func (r *ScheduleRepository) SetActive(ctx context.Context, scheduleID uuid.UUID, isActive bool) error {
	return r.DB().WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ?", scheduleID).
		Update("is_active", isActive).Error
}

// RecordRun advances the execution bookkeeping for one run. A nil nextRun
// clears next_run_at, which happens when a one-shot schedule retires.
func (r *ScheduleRepository) RecordRun(ctx context.Context, scheduleID uuid.UUID, ranAt time.Time, nextRun *time.Time, postID *uuid.UUID, deactivate bool) error {
	updates := map[string]interface{}{
		"last_run_at":  ranAt,
		"next_run_at":  nextRun,
		"run_count":    gorm.Expr("run_count + 1"),
		"last_post_id": postID,
	}
	if deactivate {
		updates["is_active"] = false
	}
	return r.DB().WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ?", scheduleID).
		Updates(updates).Error
}

// ResetRunState zeroes run_count and last_run_at and sets a freshly computed
// next run.
func (r *ScheduleRepository) ResetRunState(ctx context.Context, scheduleID uuid.UUID, nextRun *time.Time) error {
	return r.DB().WithContext(ctx).Model(&models.Schedule{}).
		Where("id = ?", scheduleID).
		Updates(map[string]interface{}{
			"run_count":   0,
			"last_run_at": nil,
			"next_run_at": nextRun,
		}).Error
}
