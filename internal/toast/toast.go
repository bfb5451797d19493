// Package toast keeps the bounded queue of ephemeral on-screen notifications shown to a
// live session.
package toast

import (
	"time"

	"github.com/studytrack/notifyd/internal/notify"
)

// DismissReason records why a toast left the queue.
type DismissReason string

const (
	ReasonTimeout DismissReason = "timeout"
	ReasonManual  DismissReason = "manual"
	ReasonEvicted DismissReason = "evicted"
	ReasonCleared DismissReason = "cleared"
)

// Action is a button rendered on a toast.
type Action struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Kind    string `json:"action"`
	OnClick func() `json:"-"`
}

// Toast is a client-local notification that is never persisted.
type Toast struct {
	ID             string          `json:"id"`
	NotificationID string          `json:"notification_id,omitempty"`
	Type           notify.Type     `json:"type"`
	Priority       notify.Priority `json:"priority"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	Icon           string          `json:"icon,omitempty"`
	Link           string          `json:"link,omitempty"`
	Duration       time.Duration   `json:"duration"`
	Actions        []Action        `json:"actions,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`

	// OnDismiss runs exactly once when the toast leaves the queue.
	OnDismiss func(id string, reason DismissReason) `json:"-"`
}

// Sticky reports whether the toast stays until dismissed by hand.
func (t Toast) Sticky() bool {
	return t.Duration <= 0
}

// Durations maps priorities to auto-dismiss delays. Zero means sticky.
type Durations struct {
	Low    time.Duration `mapstructure:"low"`
	Normal time.Duration `mapstructure:"normal"`
	High   time.Duration `mapstructure:"high"`
	Urgent time.Duration `mapstructure:"urgent"`
}

// DefaultDurations returns the stock delays: urgent toasts never auto-dismiss.
func DefaultDurations() Durations {
	return Durations{
		Low:    3 * time.Second,
		Normal: 5 * time.Second,
		High:   8 * time.Second,
	}
}

// For returns the delay for priority, treating unknown values as normal.
func (d Durations) For(priority notify.Priority) time.Duration {
	switch priority {
	case notify.PriorityLow:
		return d.Low
	case notify.PriorityHigh:
		return d.High
	case notify.PriorityUrgent:
		return d.Urgent
	default:
		return d.Normal
	}
}

// FromNotification derives a toast from a delivered notification.
func FromNotification(n notify.Notification, durations Durations) Toast {
	priority := n.Priority.OrDefault()
	t := Toast{
		NotificationID: n.ID,
		Type:           n.Type,
		Priority:       priority,
		Title:          n.Title,
		Message:        n.Message,
		Icon:           n.Icon,
		Link:           n.Link,
		Duration:       durations.For(priority),
	}
	for _, action := range n.Actions {
		t.Actions = append(t.Actions, Action{ID: action.ID, Label: action.Label, Kind: action.Action})
	}
	return t
}
