package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	"gorm.io/gorm"
)

type PostRepository struct {
	*BaseRepository[models.Post]
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{
		BaseRepository: NewBaseRepository[models.Post](db),
	}
}

func (r *PostRepository) FindByUserID(ctx context.Context, userID uuid.UUID, opts *ListOptions) ([]models.Post, int64, error) {
	var posts []models.Post
	var total int64

	query := r.DB().WithContext(ctx).Where("user_id = ?", userID)
	query.Model(&models.Post{}).Count(&total)

	if opts != nil {
		query = query.Offset(opts.Offset).Limit(opts.Limit).Order(opts.OrderBy + " " + opts.Order)
	}

	err := query.Find(&posts).Error
	return posts, total, err
}

func (r *PostRepository) FindByScheduleID(ctx context.Context, scheduleID uuid.UUID, opts *ListOptions) ([]models.Post, int64, error) {
	var posts []models.Post
	var total int64

	query := r.DB().WithContext(ctx).Where("schedule_id = ?", scheduleID)
	query.Model(&models.Post{}).Count(&total)

	if opts != nil {
		query = query.Offset(opts.Offset).Limit(opts.Limit).Order(opts.OrderBy + " " + opts.Order)
	}

	err := query.Find(&posts).Error
	return posts, total, err
}

func (r *PostRepository) AttachRemoteID(ctx context.Context, postID uuid.UUID, remoteID string) error {
	return r.DB().WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Update("remote_post_id", remoteID).Error
}

func (r *PostRepository) MarkFailed(ctx context.Context, postID uuid.UUID, errMsg string) error {
	return r.DB().WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Updates(map[string]interface{}{
			"status": models.PostStatusFailed,
			"error":  errMsg,
		}).Error
}
