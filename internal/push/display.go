// Package push manages Web Push subscriptions: the client side lifecycle of granting
// permission and registering an endpoint, the mapping from a notification to what the
// device displays, and the server side sender that delivers to stored endpoints.
package push

import (
	"github.com/studytrack/notifyd/internal/notify"
)

const defaultIcon = "/icons/notification-192.png"

// DisplayAction is a button shown on a system notification.
type DisplayAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Display is the argument of the background agent's showNotification call.
type Display struct {
	Title              string          `json:"title"`
	Body               string          `json:"body"`
	Icon               string          `json:"icon,omitempty"`
	Image              string          `json:"image,omitempty"`
	Badge              string          `json:"badge,omitempty"`
	Tag                string          `json:"tag,omitempty"`
	Renotify           bool            `json:"renotify,omitempty"`
	RequireInteraction bool            `json:"requireInteraction,omitempty"`
	Timestamp          int64           `json:"timestamp,omitempty"`
	Actions            []DisplayAction `json:"actions,omitempty"`
	Data               map[string]any  `json:"data,omitempty"`
}

// BuildDisplay maps a notification onto the display call. Urgent notifications require
// interaction and grouped ones share a tag so a repeat replaces the previous entry.
func BuildDisplay(n notify.Notification) Display {
	d := Display{
		Title:              n.Title,
		Body:               n.Message,
		Icon:               n.Icon,
		Image:              n.Image,
		Badge:              defaultIcon,
		RequireInteraction: n.Priority == notify.PriorityUrgent,
		Data: map[string]any{
			"notification_id": n.ID,
			"type":            string(n.Type),
			"priority":        string(n.Priority.OrDefault()),
		},
	}
	if d.Icon == "" {
		d.Icon = defaultIcon
	}
	if !n.CreatedAt.IsZero() {
		d.Timestamp = n.CreatedAt.UnixMilli()
	}
	if n.Link != "" {
		d.Data["url"] = n.Link
	}
	if len(n.Payload) > 0 {
		d.Data["payload"] = n.Payload
	}
	if n.Grouped() {
		d.Tag = n.GroupID
		d.Renotify = true
	}
	for _, action := range n.Actions {
		d.Actions = append(d.Actions, DisplayAction{Action: action.ID, Title: action.Label})
	}
	return d
}
