package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/studytrack/notifyd/internal/notify"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
	"github.com/studytrack/notifyd/pkg/logger"
)

// Manager bridges runtime permission, the background agent registration and the
// persisted subscription record.
type Manager struct {
	runtime        Runtime
	store          Store
	vapidPublicKey string
	log            *zap.Logger
}

// NewManager constructs a Manager. The VAPID public key is passed to the runtime as the
// application server key on every subscribe.
func NewManager(runtime Runtime, store Store, vapidPublicKey string) (*Manager, error) {
	if runtime == nil {
		return nil, errors.New("push manager: runtime is required")
	}
	if store == nil {
		return nil, errors.New("push manager: store is required")
	}
	return &Manager{
		runtime:        runtime,
		store:          store,
		vapidPublicKey: strings.TrimSpace(vapidPublicKey),
		log:            logger.WithModule("push"),
	}, nil
}

// Supported reports whether the runtime can deliver push notifications at all.
func (m *Manager) Supported() bool {
	return m.runtime.Supported()
}

// Subscribe creates a fresh subscription for userID and stores it. Any existing
// subscription is revoked first so stale keys are never reused. Missing capabilities
// yield a CapabilityError; store failures a TransportError.
func (m *Manager) Subscribe(ctx context.Context, userID string) (*Record, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidation("user id is required")
	}
	if m.vapidPublicKey == "" {
		return nil, apperrors.NewCapability("push is not configured")
	}

	if err := m.ensurePermission(ctx); err != nil {
		return nil, err
	}

	registration, err := m.ensureRegistration(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := registration.Subscription(ctx)
	if err != nil {
		m.log.Debug("read existing subscription", zap.Error(err))
	}
	if existing != nil {
		if err := existing.Unsubscribe(ctx); err != nil {
			m.log.Debug("revoke stale subscription", zap.String("endpoint", existing.Endpoint()), zap.Error(err))
		}
	}

	sub, err := registration.Subscribe(ctx, m.vapidPublicKey)
	if err != nil || sub == nil {
		return nil, apperrors.NewCapability("push subscription was refused").WithInternal(err)
	}

	record := Record{
		UserID:   userID,
		Endpoint: sub.Endpoint(),
		Keys:     sub.Keys(),
		Device:   m.runtime.Device(),
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return nil, asTransport("store push subscription", err)
	}

	m.log.Info("push subscription registered", zap.String("user_id", userID), zap.String("browser", record.Device.Browser))
	return &record, nil
}

// Unsubscribe revokes the current subscription on a best-effort basis and deletes the
// stored record for (userID, endpoint) even when the revoke fails.
func (m *Manager) Unsubscribe(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.NewValidation("user id is required")
	}
	if !m.runtime.Supported() {
		return nil
	}

	registration, err := m.runtime.Registration(ctx)
	if err != nil || registration == nil {
		return nil
	}
	sub, err := registration.Subscription(ctx)
	if err != nil || sub == nil {
		return nil
	}

	endpoint := sub.Endpoint()
	if err := sub.Unsubscribe(ctx); err != nil {
		m.log.Warn("revoke push subscription", zap.String("endpoint", endpoint), zap.Error(err))
	}

	if err := m.store.Delete(ctx, userID, endpoint); err != nil {
		return asTransport("delete push subscription", err)
	}
	return nil
}

// ShowNotification displays n through the background agent. It returns false whenever
// a capability is missing or the display call fails.
func (m *Manager) ShowNotification(ctx context.Context, n notify.Notification) bool {
	ctx = ensureContext(ctx)
	if !m.runtime.Supported() || m.runtime.Permission() != PermissionGranted {
		return false
	}
	registration, err := m.runtime.Registration(ctx)
	if err != nil || registration == nil {
		return false
	}
	if err := registration.ShowNotification(ctx, BuildDisplay(n)); err != nil {
		m.log.Debug("show notification", zap.String("notification_id", n.ID), zap.Error(err))
		return false
	}
	return true
}

func (m *Manager) ensurePermission(ctx context.Context) error {
	if !m.runtime.Supported() {
		return apperrors.NewCapability("push notifications are not supported")
	}

	switch m.runtime.Permission() {
	case PermissionGranted:
		return nil
	case PermissionDenied:
		return apperrors.NewCapability("notification permission denied")
	}

	state, err := m.runtime.RequestPermission(ctx)
	if err != nil {
		return apperrors.NewCapability("notification permission request failed").WithInternal(err)
	}
	if state != PermissionGranted {
		return apperrors.NewCapability("notification permission denied")
	}
	return nil
}

func (m *Manager) ensureRegistration(ctx context.Context) (Registration, error) {
	registration, err := m.runtime.Registration(ctx)
	if err == nil && registration != nil {
		return registration, nil
	}
	registration, err = m.runtime.Register(ctx)
	if err != nil || registration == nil {
		return nil, apperrors.NewCapability("background agent registration failed").WithInternal(err)
	}
	return registration, nil
}

func asTransport(action string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.NewTransport("push subscription store unavailable", fmt.Errorf("push manager: %s: %w", action, err))
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
