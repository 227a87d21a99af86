package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Overdue scan results, written by the scheduled scan task
	SettingKeyOverdueScanLastAt      = "overdue_scan_last_at"
	SettingKeyOverdueScanLastStatus  = "overdue_scan_last_status"
	SettingKeyOverdueScanLastCount   = "overdue_scan_last_count"
	SettingKeyOverdueScanLastMessage = "overdue_scan_last_message"
)
