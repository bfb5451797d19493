// Package notify holds the vocabulary shared by every part of the notification engine:
// types, priorities, channels, lifecycle statuses and the user preference record.
package notify

import "strings"

// Type classifies a notification.
type Type string

const (
	TypeInfo          Type = "info"
	TypeSuccess       Type = "success"
	TypeWarning       Type = "warning"
	TypeError         Type = "error"
	TypeSystem        Type = "system"
	TypeEssayGraded   Type = "essay_graded"
	TypeFlashcardDue  Type = "flashcard_due"
	TypeStudyReminder Type = "study_reminder"
	TypeCollaboration Type = "collaboration"
	TypeAchievement   Type = "achievement"
	TypeMessage       Type = "message"
)

// Types lists every notification type in declaration order.
var Types = []Type{
	TypeInfo, TypeSuccess, TypeWarning, TypeError, TypeSystem,
	TypeEssayGraded, TypeFlashcardDue, TypeStudyReminder,
	TypeCollaboration, TypeAchievement, TypeMessage,
}

// Valid reports whether t is a known notification type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Priority orders notifications on the fixed scale low < normal < high < urgent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the ordinal of p, or -1 for unknown priorities.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityNormal:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return -1
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Below reports whether p ranks strictly lower than threshold. Unknown thresholds
// never block.
func (p Priority) Below(threshold Priority) bool {
	if !threshold.Valid() {
		return false
	}
	return p.Rank() < threshold.Rank()
}

// OrDefault returns p, or PriorityNormal when p is empty.
func (p Priority) OrDefault() Priority {
	if strings.TrimSpace(string(p)) == "" {
		return PriorityNormal
	}
	return p
}

// Channel is a delivery surface.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Channels lists every delivery channel.
var Channels = []Channel{ChannelInApp, ChannelPush, ChannelEmail, ChannelSMS}

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelPush, ChannelEmail, ChannelSMS:
		return true
	default:
		return false
	}
}

// NormaliseChannels trims, de-duplicates and drops empty entries, keeping order.
func NormaliseChannels(channels []Channel) []Channel {
	if len(channels) == 0 {
		return nil
	}
	seen := make(map[Channel]struct{}, len(channels))
	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		ch = Channel(strings.ToLower(strings.TrimSpace(string(ch))))
		if ch == "" {
			continue
		}
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}

// ContainsChannel reports whether target is present in channels.
func ContainsChannel(channels []Channel, target Channel) bool {
	for _, ch := range channels {
		if ch == target {
			return true
		}
	}
	return false
}

// Category is the coarse grouping used by category preferences.
type Category string

const (
	CategoryStudy     Category = "study"
	CategorySocial    Category = "social"
	CategorySystem    Category = "system"
	CategoryMarketing Category = "marketing"
)

// CategoryOf maps a notification type onto its category.
func CategoryOf(t Type) Category {
	switch t {
	case TypeEssayGraded, TypeFlashcardDue, TypeStudyReminder, TypeAchievement:
		return CategoryStudy
	case TypeCollaboration, TypeMessage:
		return CategorySocial
	default:
		return CategorySystem
	}
}
