package models

import "time"

// Setting keys
const (
	SettingLinkedInUsername = "linkedin_username"
)

// UserSetting is one per-user key/value pair.
type UserSetting struct {
	UserID    string `gorm:"primaryKey;type:varchar(64)"`
	Key       string `gorm:"primaryKey;type:varchar(64)"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}
