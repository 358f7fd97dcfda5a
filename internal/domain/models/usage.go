package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one row per governed call. Rows are append-only; they are
// written on every check regardless of the allow/deny outcome so statistics
// stay accurate under denial.
type UsageRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Caller    string    `gorm:"size:100;index:idx_usage_key;not null" json:"caller"`
	Endpoint  string    `gorm:"size:255;index:idx_usage_key;not null" json:"endpoint"`
	Method    string    `gorm:"size:10;index:idx_usage_key;not null" json:"method"`
	Allowed   bool      `gorm:"default:true" json:"allowed"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}

// TokenSpend is one row per generation call.
type TokenSpend struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Tokens    int       `gorm:"not null" json:"tokens"`
	Model     string    `gorm:"size:100" json:"model"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (TokenSpend) TableName() string {
	return "token_spends"
}

// EndpointUsage is a read-side aggregate over usage records, grouped by
// endpoint and method.
type EndpointUsage struct {
	Endpoint string `json:"endpoint"`
	Method   string `json:"method"`
	Calls    int64  `json:"calls"`
	Denied   int64  `json:"denied"`
}
