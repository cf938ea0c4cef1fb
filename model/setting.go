package model

import "time"

// Setting is a small key/value row for operational markers such as last_data_cleanup.
type Setting struct {
	Key       string    `json:"key" gorm:"primaryKey;type:varchar(64)"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

const SettingLastDataCleanup = "last_data_cleanup"
