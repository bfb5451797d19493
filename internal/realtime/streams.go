package realtime

// Named realtime streams.
const (
	StreamNotifications = "notifications"
)

// Events published on the notifications stream.
const (
	EventNotificationCreated  = "notification.created"
	EventNotificationRead     = "notification.read"
	EventNotificationReadAll  = "notification.read_all"
	EventNotificationArchived = "notification.archived"
	EventNotificationDeleted  = "notification.deleted"
	EventPreferencesUpdated   = "preferences.updated"
	EventPong                 = "pong"
)
