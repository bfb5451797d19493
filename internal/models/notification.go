package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/studytrack/notifyd/internal/notify"
)

// Notification is the persisted notification row.
type Notification struct {
	BaseModel

	UserID   string `gorm:"type:uuid;not null;index:idx_notifications_user_status,priority:1" json:"user_id"`
	Type     string `gorm:"type:varchar(64);not null;index" json:"type"`
	Priority string `gorm:"type:varchar(16);not null" json:"priority"`
	Status   string `gorm:"type:varchar(16);not null;index:idx_notifications_user_status,priority:2" json:"status"`

	Title   string `gorm:"type:varchar(255);not null" json:"title"`
	Message string `gorm:"type:text;not null" json:"message"`
	Icon    string `gorm:"type:text" json:"icon"`
	Image   string `gorm:"type:text" json:"image"`
	Link    string `gorm:"type:text" json:"link"`

	Payload      datatypes.JSON                      `json:"payload"`
	Actions      datatypes.JSONSlice[notify.Action]  `json:"actions"`
	DeliveredVia datatypes.JSONSlice[notify.Channel] `json:"delivered_via"`

	GroupID    string `gorm:"type:varchar(128);index" json:"group_id"`
	GroupCount int    `gorm:"not null" json:"group_count"`

	ReadAt    *time.Time `json:"read_at"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at"`
}

// ToDomain converts the row into its API representation.
func (n *Notification) ToDomain() notify.Notification {
	out := notify.Notification{
		ID:         n.ID,
		UserID:     n.UserID,
		Type:       notify.Type(n.Type),
		Priority:   notify.Priority(n.Priority),
		Status:     notify.Status(n.Status),
		Title:      n.Title,
		Message:    n.Message,
		Icon:       n.Icon,
		Image:      n.Image,
		Link:       n.Link,
		GroupID:    n.GroupID,
		GroupCount: n.GroupCount,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
		ReadAt:     n.ReadAt,
		ExpiresAt:  n.ExpiresAt,
	}
	if len(n.Actions) > 0 {
		out.Actions = append([]notify.Action(nil), n.Actions...)
	}
	if len(n.DeliveredVia) > 0 {
		out.DeliveredVia = append([]notify.Channel(nil), n.DeliveredVia...)
	}
	if len(n.Payload) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(n.Payload, &payload); err == nil && len(payload) > 0 {
			out.Payload = payload
		}
	}
	return out
}
