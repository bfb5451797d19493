package notify

import "time"

// Action is a user action attached to a notification, e.g. "Review now".
type Action struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Action string `json:"action"`
	URL    string `json:"url,omitempty"`
}

// Notification is the API and real-time representation of a stored notification.
type Notification struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Type         Type           `json:"type"`
	Priority     Priority       `json:"priority"`
	Status       Status         `json:"status"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Icon         string         `json:"icon,omitempty"`
	Image        string         `json:"image,omitempty"`
	Link         string         `json:"link,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	Actions      []Action       `json:"actions,omitempty"`
	DeliveredVia []Channel      `json:"delivered_via,omitempty"`
	GroupID      string         `json:"group_id,omitempty"`
	GroupCount   int            `json:"group_count,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	ReadAt       *time.Time     `json:"read_at,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
}

// IsUnread reports whether the notification still counts towards the unread badge.
func (n Notification) IsUnread() bool {
	return n.Status == StatusUnread
}

// Expired reports whether the notification has passed its expiry at the given instant.
func (n Notification) Expired(at time.Time) bool {
	return n.ExpiresAt != nil && !at.Before(*n.ExpiresAt)
}

// Grouped reports whether repeated notifications should replace rather than stack.
func (n Notification) Grouped() bool {
	return n.GroupID != ""
}
