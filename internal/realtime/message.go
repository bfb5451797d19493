package realtime

import "github.com/studytrack/notifyd/internal/notify"

// Payload carries the event specific data of a Message.
type Payload struct {
	Notification    *notify.Notification `json:"notification,omitempty"`
	NotificationID  string               `json:"notification_id,omitempty"`
	NotificationIDs []string             `json:"notification_ids,omitempty"`
	Preferences     *notify.Preferences  `json:"preferences,omitempty"`
	UnreadCount     *int64               `json:"unread_count,omitempty"`
}

// Message represents a JSON payload delivered to realtime subscribers.
type Message struct {
	Stream string         `json:"stream"`
	Event  string         `json:"event"`
	Data   *Payload       `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Source is anything that yields realtime messages until closed: an in-process
// Subscription or a WebSocket Client.
type Source interface {
	C() <-chan Message
	Close()
}

// Publisher fans messages out to a user's live sessions.
type Publisher interface {
	BroadcastToUser(stream, userID string, message Message)
}

type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}
