package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studytrack/notifyd/internal/auth"
	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/toast"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, []string{"https://app.studytrack.example"}, cfg.Server.AllowedOrigins)
	require.True(t, cfg.Server.RateLimit.Enabled)
	require.Equal(t, 30, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "studytrack", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	n := cfg.Notifications
	require.Equal(t, 168*time.Hour, n.DefaultExpiry)
	require.Equal(t, []string{"in_app", "push"}, n.DefaultChannels)
	require.Equal(t, 25, n.BulkBatchSize)
	require.Equal(t, time.Minute, n.PreferencesCacheTTL)
	require.Equal(t, "Europe/Berlin", n.DefaultTimezone)
	require.Equal(t, 3, n.Toast.MaxToasts)
	require.Equal(t, 4*time.Second, n.Toast.Durations.Normal)
	require.Equal(t, "ops@studytrack.example", n.Push.Subscriber)
	require.Equal(t, 12*time.Hour, n.Push.TTL)
	require.Equal(t, "@every 30m", n.Maintenance.ExpirySchedule)
	require.Equal(t, "@daily", n.Maintenance.AuditSchedule)
	require.Equal(t, 30, n.Maintenance.AuditRetentionDays)
	require.Equal(t, 240*time.Hour, n.Maintenance.InactivePushRetention)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, 720*time.Hour, cfg.Notifications.DefaultExpiry)
	require.Equal(t, []string{"in_app"}, cfg.Notifications.DefaultChannels)
	require.Equal(t, 5, cfg.Notifications.Toast.MaxToasts)
	require.True(t, cfg.Notifications.Push.Enabled)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("NOTIFYD_SERVER_PORT", "7070")
	t.Setenv("NOTIFYD_NOTIFICATIONS_BULK_BATCH_SIZE", "10")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 10, cfg.Notifications.BulkBatchSize)
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{Secret: "secret", Issuer: "issuer", TTL: 30 * time.Minute}}
	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		AccessTokenTTL: 30 * time.Minute,
	}, cfg.JWTServiceConfig())

	var empty AuthConfig
	require.Equal(t, auth.DefaultAccessTokenTTL, empty.JWTServiceConfig().AccessTokenTTL)
}

func TestEmailConfigAdapter(t *testing.T) {
	cfg := EmailConfig{
		SMTP: SMTPConfig{
			Enabled:  true,
			Host:     "smtp.example.com",
			Port:     2525,
			Username: "user",
			Password: "pass",
			From:     "no-reply@example.com",
			UseTLS:   true,
			Timeout:  10 * time.Second,
		},
	}

	settings := cfg.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, 2525, settings.Port)
	require.Equal(t, "no-reply@example.com", settings.From)
	require.Equal(t, 10*time.Second, settings.Timeout)
}

func TestNotificationsConfigAdapters(t *testing.T) {
	cfg := NotificationsConfig{
		DefaultExpiry:   time.Hour,
		DefaultChannels: []string{" In_App ", "email"},
		BulkBatchSize:   7,
		DefaultTimezone: "America/New_York",
	}

	svc := cfg.ServiceConfig()
	require.Equal(t, time.Hour, svc.DefaultExpiry)
	require.Equal(t, []notify.Channel{notify.ChannelInApp, notify.ChannelEmail}, svc.DefaultChannels)
	require.Equal(t, 7, svc.BulkBatchSize)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "America/New_York", loc.String())

	cfg.DefaultTimezone = "Mars/Olympus"
	_, err = cfg.Location()
	require.Error(t, err)

	cfg.DefaultTimezone = ""
	loc, err = cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestToastDurationsFallback(t *testing.T) {
	require.Equal(t, toast.DefaultDurations(), ToastConfig{}.ToastDurations())

	custom := ToastConfig{Durations: ToastDurationSettings{Low: time.Second, Normal: 2 * time.Second}}
	d := custom.ToastDurations()
	require.Equal(t, time.Second, d.Low)
	require.Zero(t, d.Urgent)
}

func TestPushSenderConfigAdapter(t *testing.T) {
	cfg := PushConfig{VAPIDPublicKey: " pub ", VAPIDPrivateKey: "priv", Subscriber: "ops@example.com", TTL: time.Hour}
	sender := cfg.SenderConfig()
	require.Equal(t, "pub", sender.VAPIDPublicKey)
	require.Equal(t, "ops@example.com", sender.Subscriber)
	require.Equal(t, time.Hour, sender.TTL)
}
