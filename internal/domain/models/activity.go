package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActivityScheduleRun    = "schedule.run"
	ActivityRateLimitHit   = "governor.rate_limit"
	ActivityBudgetWarning  = "governor.budget_warning"
	ActivityBudgetExceeded = "governor.budget_exceeded"
)

// ActivityLog records execution outcomes and governor threshold events.
type ActivityLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	ScheduleID *uuid.UUID `gorm:"type:uuid;index" json:"schedule_id,omitempty"`
	PostID     *uuid.UUID `gorm:"type:uuid" json:"post_id,omitempty"`
	Action     string     `gorm:"size:50;index;not null" json:"action"`
	Message    string     `gorm:"type:text" json:"message"`
	Success    bool       `gorm:"default:true" json:"success"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
