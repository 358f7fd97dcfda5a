package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"gorm.io/gorm"
)

type ActivityRepository struct {
	*BaseRepository[models.ActivityLog]
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{
		BaseRepository: NewBaseRepository[models.ActivityLog](db),
	}
}

func (r *ActivityRepository) FindByScheduleID(ctx context.Context, scheduleID uuid.UUID, opts *ListOptions) ([]models.ActivityLog, int64, error) {
	var logs []models.ActivityLog
	var total int64

	query := r.DB().WithContext(ctx).Where("schedule_id = ?", scheduleID)
	query.Model(&models.ActivityLog{}).Count(&total)

	if opts != nil {
		query = query.Offset(opts.Offset).Limit(opts.Limit).Order(opts.OrderBy + " " + opts.Order)
	}

	err := query.Find(&logs).Error
	return logs, total, err
}

// FindRecent returns the newest entries across all schedules, optionally
// filtered by action.
func (r *ActivityRepository) FindRecent(ctx context.Context, action string, opts *ListOptions) ([]models.ActivityLog, int64, error) {
	var logs []models.ActivityLog
	var total int64

	query := r.DB().WithContext(ctx).Model(&models.ActivityLog{})
	if action != "" {
		query = query.Where("action = ?", action)
	}
	query.Count(&total)

	query = query.Order("created_at DESC")
	if opts != nil {
		query = query.Offset(opts.Offset).Limit(opts.Limit)
	}

	err := query.Find(&logs).Error
	return logs, total, err
}
