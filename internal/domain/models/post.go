package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

type Post struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	ScheduleID   *uuid.UUID     `gorm:"type:uuid;index" json:"schedule_id,omitempty"`
	Content      string         `gorm:"size:5000;not null" json:"content"`
	Status       string         `gorm:"size:20;not null;default:draft" json:"status"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	RemotePostID *string        `gorm:"size:255" json:"remote_post_id,omitempty"`
	Error        *string        `gorm:"type:text" json:"error,omitempty"`
	Views        int            `gorm:"default:0" json:"views"`
	Engagements  int            `gorm:"default:0" json:"engagements"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Post) TableName() string {
	return "posts"
}
