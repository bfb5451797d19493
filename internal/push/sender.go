package push

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/pkg/logger"
)

const defaultTTL = 24 * time.Hour

// ErrNoSubscriptions is returned when the recipient has no active endpoint.
var ErrNoSubscriptions = errors.New("push sender: no active subscriptions")

// SenderConfig carries the VAPID identity used to sign deliveries.
type SenderConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             time.Duration
	HTTPClient      webpush.HTTPClient
}

// SubscriptionSource lists and maintains stored endpoints for the sender.
type SubscriptionSource interface {
	ListActive(ctx context.Context, userID string) ([]Record, error)
	Deactivate(ctx context.Context, endpoint string) error
	MarkDelivered(ctx context.Context, endpoint string, at time.Time) error
}

// Sender delivers notifications to every active endpoint of a user.
type Sender struct {
	cfg    SenderConfig
	source SubscriptionSource
	now    func() time.Time
	log    *zap.Logger
}

// NewSender validates the VAPID configuration and returns a Sender.
func NewSender(cfg SenderConfig, source SubscriptionSource) (*Sender, error) {
	if source == nil {
		return nil, errors.New("push sender: subscription source is required")
	}
	cfg.VAPIDPublicKey = strings.TrimSpace(cfg.VAPIDPublicKey)
	cfg.VAPIDPrivateKey = strings.TrimSpace(cfg.VAPIDPrivateKey)
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, errors.New("push sender: vapid key pair is required")
	}
	if strings.TrimSpace(cfg.Subscriber) == "" {
		return nil, errors.New("push sender: subscriber contact is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Sender{
		cfg:    cfg,
		source: source,
		now:    time.Now,
		log:    logger.WithModule("push.sender"),
	}, nil
}

// PublicKey returns the application server key clients subscribe with.
func (s *Sender) PublicKey() string {
	return s.cfg.VAPIDPublicKey
}

// Send delivers n to each active endpoint of userID and returns how many accepted it.
// Endpoints answering 404 or 410 are deactivated. An error is returned only when no
// endpoint accepted the message.
func (s *Sender) Send(ctx context.Context, userID string, n notify.Notification) (int, error) {
	ctx = ensureContext(ctx)

	records, err := s.source.ListActive(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("push sender: list subscriptions: %w", err)
	}
	if len(records) == 0 {
		return 0, ErrNoSubscriptions
	}

	payload, err := json.Marshal(BuildDisplay(n))
	if err != nil {
		return 0, fmt.Errorf("push sender: encode payload: %w", err)
	}

	options := &webpush.Options{
		HTTPClient:      s.cfg.HTTPClient,
		Subscriber:      s.cfg.Subscriber,
		Topic:           topicFor(n),
		TTL:             int(s.cfg.TTL / time.Second),
		Urgency:         urgencyFor(n.Priority),
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
	}

	var (
		delivered int
		errs      error
	)
	for _, record := range records {
		if err := s.deliver(ctx, payload, record, options); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		delivered++
		if err := s.source.MarkDelivered(ctx, record.Endpoint, s.now().UTC()); err != nil {
			s.log.Debug("mark subscription used", zap.String("endpoint", record.Endpoint), zap.Error(err))
		}
	}

	if delivered == 0 {
		return 0, errs
	}
	if errs != nil {
		s.log.Debug("partial push delivery", zap.String("user_id", userID), zap.Int("delivered", delivered), zap.Error(errs))
	}
	return delivered, nil
}

func (s *Sender) deliver(ctx context.Context, payload []byte, record Record, options *webpush.Options) error {
	sub := &webpush.Subscription{
		Endpoint: record.Endpoint,
		Keys: webpush.Keys{
			Auth:   record.Keys.Auth,
			P256dh: record.Keys.P256dh,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, options)
	if err != nil {
		return fmt.Errorf("push sender: deliver to %s: %w", record.Endpoint, err)
	}
	if resp.Body != nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		if err := s.source.Deactivate(ctx, record.Endpoint); err != nil {
			s.log.Warn("deactivate expired subscription", zap.String("endpoint", record.Endpoint), zap.Error(err))
		}
		return fmt.Errorf("push sender: subscription %s expired (%d)", record.Endpoint, resp.StatusCode)
	default:
		return fmt.Errorf("push sender: deliver to %s: unexpected status %d", record.Endpoint, resp.StatusCode)
	}
}

func urgencyFor(priority notify.Priority) webpush.Urgency {
	switch priority.OrDefault() {
	case notify.PriorityLow:
		return webpush.UrgencyLow
	case notify.PriorityHigh, notify.PriorityUrgent:
		return webpush.UrgencyHigh
	default:
		return webpush.UrgencyNormal
	}
}

// topicFor collapses pending deliveries of the same group. Topics are limited to 32
// url-safe characters, so the group id is hashed.
func topicFor(n notify.Notification) string {
	if !n.Grouped() {
		return ""
	}
	sum := sha256.Sum256([]byte(n.GroupID))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:32]
}

// GenerateVAPIDKeys creates a new application server key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("push: generate vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}
