package models

import "gorm.io/datatypes"

// AuditLog records producer and user actions on notifications and preferences.
type AuditLog struct {
	BaseModel

	UserID     *string        `gorm:"type:uuid;index" json:"user_id"`
	Actor      string         `gorm:"type:varchar(128)" json:"actor"`
	Action     string         `gorm:"type:varchar(64);not null;index" json:"action"`
	Resource   string         `gorm:"type:varchar(64);index" json:"resource"`
	ResourceID string         `gorm:"type:varchar(64)" json:"resource_id"`
	Result     string         `gorm:"type:varchar(16);not null" json:"result"`
	IPAddress  string         `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent  string         `gorm:"type:varchar(255)" json:"user_agent,omitempty"`
	Metadata   datatypes.JSON `json:"metadata"`
}
