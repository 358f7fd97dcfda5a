package models

import "time"

// Recognized setting keys. Values are stored as strings and parsed by the
// settings service; unparseable or missing values fall back to configured
// defaults.
const (
	SettingSweepInterval       = "scheduler.sweep_interval_seconds"
	SettingRateLimitPerHour    = "governor.rate_limit_per_hour"
	SettingDailyTokenBudget    = "governor.daily_token_budget"
	SettingNotifyCooldown      = "governor.notify_cooldown_minutes"
	SettingMaintenanceMode     = "maintenance.enabled"
	SettingMaintenanceStart    = "maintenance.window_start"
	SettingMaintenanceEnd      = "maintenance.window_end"
	SettingEndpointLimitPrefix = "governor.rate_limit." // + endpoint name
)

type Setting struct {
	Key       string    `gorm:"size:100;primaryKey" json:"key"`
	Value     string    `gorm:"size:500;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}
