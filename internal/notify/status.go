package notify

// Status is the persisted lifecycle state of a notification.
type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusArchived Status = "archived"
	StatusDeleted  Status = "deleted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnread, StatusRead, StatusArchived, StatusDeleted:
		return true
	default:
		return false
	}
}

// transitions lists the forward moves allowed from each state. Nothing ever leads back
// to unread and deleted is terminal.
var transitions = map[Status][]Status{
	StatusUnread:   {StatusRead, StatusArchived, StatusDeleted},
	StatusRead:     {StatusArchived, StatusDeleted},
	StatusArchived: {StatusDeleted},
}

// CanTransition reports whether a notification in state from may move to state to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
