package push

import "context"

// Permission is the notification permission state reported by the runtime.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Keys are the subscription encryption keys, base64url encoded.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Device describes the client a subscription was created on.
type Device struct {
	Platform string `json:"platform,omitempty"`
	Browser  string `json:"browser,omitempty"`
	OS       string `json:"os,omitempty"`
}

// Runtime is the capability surface of the environment hosting a session, such as a
// browser or a native shell. Implementations report missing capabilities through
// Supported and Permission rather than failing later.
type Runtime interface {
	Supported() bool
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
	// Registration returns the active background agent, or nil when none is registered.
	Registration(ctx context.Context) (Registration, error)
	Register(ctx context.Context) (Registration, error)
	Device() Device
}

// Registration is a registered background delivery agent.
type Registration interface {
	// Subscription returns the current push subscription, or nil when there is none.
	Subscription(ctx context.Context) (BrowserSubscription, error)
	Subscribe(ctx context.Context, applicationServerKey string) (BrowserSubscription, error)
	ShowNotification(ctx context.Context, display Display) error
}

// BrowserSubscription is a transport level push subscription.
type BrowserSubscription interface {
	Endpoint() string
	Keys() Keys
	Unsubscribe(ctx context.Context) error
}

// Record is the persisted form of a subscription.
type Record struct {
	UserID   string `json:"user_id"`
	Endpoint string `json:"endpoint"`
	Keys     Keys   `json:"keys"`
	Device   Device `json:"device"`
}

// Store persists subscription records keyed by endpoint.
type Store interface {
	Upsert(ctx context.Context, record Record) error
	Delete(ctx context.Context, userID, endpoint string) error
}
