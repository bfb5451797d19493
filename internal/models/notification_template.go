package models

import (
	"gorm.io/datatypes"

	"github.com/studytrack/notifyd/internal/notify"
)

// NotificationTemplate is a stored title/message pattern with "{var}" placeholders.
type NotificationTemplate struct {
	BaseModel

	Name            string                              `gorm:"type:varchar(128);not null;uniqueIndex" json:"name"`
	Description     string                              `gorm:"type:text" json:"description"`
	Type            string                              `gorm:"type:varchar(64);not null" json:"type"`
	Priority        string                              `gorm:"type:varchar(16);not null" json:"priority"`
	TitleTemplate   string                              `gorm:"type:varchar(255);not null" json:"title_template"`
	MessageTemplate string                              `gorm:"type:text;not null" json:"message_template"`
	Icon            string                              `gorm:"type:text" json:"icon"`
	Link            string                              `gorm:"type:text" json:"link"`
	Channels        datatypes.JSONSlice[notify.Channel] `json:"channels"`
}
