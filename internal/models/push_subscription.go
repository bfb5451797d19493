package models

import "time"

// PushSubscription is a Web Push endpoint registered by one of a user's devices.
type PushSubscription struct {
	BaseModel

	UserID   string `gorm:"type:uuid;not null;index" json:"user_id"`
	Endpoint string `gorm:"type:varchar(1024);not null;uniqueIndex" json:"endpoint"`
	P256dh   string `gorm:"type:varchar(255);not null" json:"p256dh"`
	Auth     string `gorm:"type:varchar(255);not null" json:"auth"`

	Platform string `gorm:"type:varchar(64)" json:"platform"`
	Browser  string `gorm:"type:varchar(64)" json:"browser"`
	OS       string `gorm:"type:varchar(64)" json:"os"`

	IsActive     bool       `gorm:"index" json:"is_active"`
	FailureCount int        `json:"failure_count"`
	LastUsedAt   *time.Time `json:"last_used_at"`
}
