package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Frequency values accepted on a schedule. Cron schedules carry their
// expression in CronExpression; the others derive the step from Frequency
// alone.
const (
	FrequencyOnce    = "once"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyCron    = "cron"
)

type Schedule struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	Name           string         `gorm:"size:100;not null" json:"name"`
	Topic          string         `gorm:"size:255" json:"topic"`
	GenerateText   bool           `gorm:"default:true" json:"generate_text"`
	Time           time.Time      `gorm:"not null" json:"time"`
	Frequency      string         `gorm:"size:20;not null;default:daily" json:"frequency"`
	CronExpression string         `gorm:"size:100" json:"cron_expression,omitempty"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time     `gorm:"index" json:"next_run_at,omitempty"`
	RunCount       int            `gorm:"default:0" json:"run_count"`
	LastPostID     *uuid.UUID     `gorm:"type:uuid" json:"last_post_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	User     User  `gorm:"foreignKey:UserID" json:"-"`
	LastPost *Post `gorm:"foreignKey:LastPostID" json:"-"`
}

func (Schedule) TableName() string {
	return "schedules"
}

// IsRecurring reports whether the schedule repeats after an execution.
func (s *Schedule) IsRecurring() bool {
	return s.Frequency != FrequencyOnce
}
