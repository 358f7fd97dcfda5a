package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"gorm.io/gorm"
)

// UsageRepository is the durable ledger behind the usage governor. Rows are
// append-only; counters are derived by aggregation.
type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) RecordCall(ctx context.Context, rec *models.UsageRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *UsageRepository) RecordTokenSpend(ctx context.Context, rec *models.TokenSpend) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *UsageRepository) CountCallsSince(ctx context.Context, caller, endpoint, method string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UsageRecord{}).
		Where("caller = ? AND endpoint = ? AND method = ? AND created_at >= ?", caller, endpoint, method, since).
		Count(&count).Error
	return count, err
}

func (r *UsageRepository) SumTokensSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&models.TokenSpend{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Select("COALESCE(SUM(tokens), 0)").
		Scan(&sum).Error
	return sum, err
}

// StatsByEndpoint aggregates ledger rows grouped by endpoint and method over
// [from, to).
func (r *UsageRepository) StatsByEndpoint(ctx context.Context, from, to time.Time) ([]models.EndpointUsage, error) {
	var stats []models.EndpointUsage
	err := r.db.WithContext(ctx).Model(&models.UsageRecord{}).
		Select("endpoint, method, COUNT(*) AS calls, COUNT(*) FILTER (WHERE NOT allowed) AS denied").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("endpoint, method").
		Order("calls DESC").
		Scan(&stats).Error
	return stats, err
}
