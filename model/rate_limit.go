package model

import "time"

// RateLimitRecord is one fixed-window counter in the rate_limits table.
type RateLimitRecord struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Key             string    `json:"key" gorm:"column:rate_key;type:varchar(191);uniqueIndex;not null"`
	Count           int       `json:"count" gorm:"not null;default:0"`
	WindowResetTime time.Time `json:"window_reset_time" gorm:"not null;index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (RateLimitRecord) TableName() string {
	return "rate_limits"
}
