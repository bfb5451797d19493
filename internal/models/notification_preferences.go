package models

import (
	"gorm.io/datatypes"

	"github.com/studytrack/notifyd/internal/notify"
)

// NotificationPreferences stores one preference record per user.
type NotificationPreferences struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	GlobalEnabled     bool   `json:"global_enabled"`
	DoNotDisturb      bool   `json:"do_not_disturb"`
	DoNotDisturbStart string `gorm:"type:varchar(8)" json:"do_not_disturb_start"`
	DoNotDisturbEnd   string `gorm:"type:varchar(8)" json:"do_not_disturb_end"`

	QuietHours          datatypes.JSONType[notify.QuietHours]                     `json:"quiet_hours"`
	Channels            datatypes.JSONType[notify.ChannelPreferences]             `json:"channels"`
	TypePreferences     datatypes.JSONType[map[notify.Type]notify.TypePreference] `json:"type_preferences"`
	CategoryPreferences datatypes.JSONType[map[notify.Category]bool]              `json:"category_preferences"`
}

// TableName keeps the table name singular per user record.
func (NotificationPreferences) TableName() string {
	return "notification_preferences"
}

// NewNotificationPreferences builds a row from the domain record.
func NewNotificationPreferences(p notify.Preferences) *NotificationPreferences {
	row := &NotificationPreferences{UserID: p.UserID}
	row.Assign(p)
	return row
}

// Assign copies every preference field from p, leaving identity and timestamps alone.
func (r *NotificationPreferences) Assign(p notify.Preferences) {
	r.GlobalEnabled = p.GlobalEnabled
	r.DoNotDisturb = p.DoNotDisturb
	r.DoNotDisturbStart = p.DoNotDisturbStart
	r.DoNotDisturbEnd = p.DoNotDisturbEnd
	r.QuietHours = datatypes.NewJSONType(p.QuietHours)
	r.Channels = datatypes.NewJSONType(p.Channels)
	r.TypePreferences = datatypes.NewJSONType(p.TypePreferences)
	r.CategoryPreferences = datatypes.NewJSONType(p.CategoryPreferences)
}

// ToDomain converts the row into the evaluation record.
func (r *NotificationPreferences) ToDomain() notify.Preferences {
	prefs := notify.Preferences{
		UserID:              r.UserID,
		GlobalEnabled:       r.GlobalEnabled,
		DoNotDisturb:        r.DoNotDisturb,
		DoNotDisturbStart:   r.DoNotDisturbStart,
		DoNotDisturbEnd:     r.DoNotDisturbEnd,
		QuietHours:          r.QuietHours.Data(),
		Channels:            r.Channels.Data(),
		TypePreferences:     r.TypePreferences.Data(),
		CategoryPreferences: r.CategoryPreferences.Data(),
		UpdatedAt:           r.UpdatedAt,
	}
	if prefs.TypePreferences == nil {
		prefs.TypePreferences = map[notify.Type]notify.TypePreference{}
	}
	if prefs.CategoryPreferences == nil {
		prefs.CategoryPreferences = map[notify.Category]bool{}
	}
	return prefs
}
