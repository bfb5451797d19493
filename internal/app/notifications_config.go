package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/push"
	"github.com/studytrack/notifyd/internal/services"
	"github.com/studytrack/notifyd/internal/toast"
)

// ServiceConfig converts the notification defaults into orchestrator settings.
func (c NotificationsConfig) ServiceConfig() services.NotificationConfig {
	channels := make([]notify.Channel, 0, len(c.DefaultChannels))
	for _, raw := range c.DefaultChannels {
		channels = append(channels, notify.Channel(strings.ToLower(strings.TrimSpace(raw))))
	}
	return services.NotificationConfig{
		DefaultExpiry:   c.DefaultExpiry,
		DefaultChannels: channels,
		BulkBatchSize:   c.BulkBatchSize,
	}
}

// Location resolves the default timezone used for do-not-disturb windows.
func (c NotificationsConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.DefaultTimezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("notifications.default_timezone: %w", err)
	}
	return loc, nil
}

// ToastDurations converts the configured delays, falling back to the stock delays when
// none are set.
func (c ToastConfig) ToastDurations() toast.Durations {
	d := c.Durations
	if d.Low == 0 && d.Normal == 0 && d.High == 0 && d.Urgent == 0 {
		return toast.DefaultDurations()
	}
	return toast.Durations{
		Low:    d.Low,
		Normal: d.Normal,
		High:   d.High,
		Urgent: d.Urgent,
	}
}

// SenderConfig converts the push settings into the web push sender configuration.
func (c PushConfig) SenderConfig() push.SenderConfig {
	return push.SenderConfig{
		VAPIDPublicKey:  strings.TrimSpace(c.VAPIDPublicKey),
		VAPIDPrivateKey: strings.TrimSpace(c.VAPIDPrivateKey),
		Subscriber:      strings.TrimSpace(c.Subscriber),
		TTL:             c.TTL,
	}
}
