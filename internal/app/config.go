package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the notifyd backend.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Email         EmailConfig         `mapstructure:"email"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int             `mapstructure:"port"`
	LogLevel       string          `mapstructure:"log_level"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds producer and API traffic per caller.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Prefix   string        `mapstructure:"prefix"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures bearer token settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// NotificationsConfig holds the delivery engine defaults.
type NotificationsConfig struct {
	DefaultExpiry       time.Duration     `mapstructure:"default_expiry"`
	DefaultChannels     []string          `mapstructure:"default_channels"`
	BulkBatchSize       int               `mapstructure:"bulk_batch_size"`
	PreferencesCacheTTL time.Duration     `mapstructure:"preferences_cache_ttl"`
	DefaultTimezone     string            `mapstructure:"default_timezone"`
	BaseURL             string            `mapstructure:"base_url"`
	Toast               ToastConfig       `mapstructure:"toast"`
	Push                PushConfig        `mapstructure:"push"`
	Maintenance         MaintenanceConfig `mapstructure:"maintenance"`
}

// ToastConfig bounds the in-app toast stack.
type ToastConfig struct {
	MaxToasts int                   `mapstructure:"max_toasts"`
	Durations ToastDurationSettings `mapstructure:"durations"`
}

// ToastDurationSettings maps priorities to auto-dismiss delays. Zero keeps a toast sticky.
type ToastDurationSettings struct {
	Low    time.Duration `mapstructure:"low"`
	Normal time.Duration `mapstructure:"normal"`
	High   time.Duration `mapstructure:"high"`
	Urgent time.Duration `mapstructure:"urgent"`
}

// PushConfig holds the VAPID identity for web push.
type PushConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	VAPIDPublicKey  string        `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string        `mapstructure:"vapid_private_key"`
	Subscriber      string        `mapstructure:"subscriber"`
	TTL             time.Duration `mapstructure:"ttl"`
}

// MaintenanceConfig schedules the cleanup jobs.
type MaintenanceConfig struct {
	ExpirySchedule        string        `mapstructure:"expiry_schedule"`
	AuditSchedule         string        `mapstructure:"audit_schedule"`
	PushSchedule          string        `mapstructure:"push_schedule"`
	CacheSchedule         string        `mapstructure:"cache_schedule"`
	AuditRetentionDays    int           `mapstructure:"audit_retention_days"`
	InactivePushRetention time.Duration `mapstructure:"inactive_push_retention"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("NOTIFYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/notifyd.sqlite")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.prefix", "notifyd:")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.timeout", "3s")

	v.SetDefault("auth.jwt.issuer", "notifyd")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("notifications.default_expiry", "720h") // 30 days
	v.SetDefault("notifications.default_channels", []string{"in_app"})
	v.SetDefault("notifications.bulk_batch_size", 100)
	v.SetDefault("notifications.preferences_cache_ttl", "5m")
	v.SetDefault("notifications.default_timezone", "UTC")
	v.SetDefault("notifications.base_url", "")
	v.SetDefault("notifications.toast.max_toasts", 5)
	v.SetDefault("notifications.toast.durations.low", "3s")
	v.SetDefault("notifications.toast.durations.normal", "5s")
	v.SetDefault("notifications.toast.durations.high", "8s")
	v.SetDefault("notifications.toast.durations.urgent", "0s")
	v.SetDefault("notifications.push.enabled", true)
	v.SetDefault("notifications.push.subscriber", "notifications@localhost")
	v.SetDefault("notifications.push.ttl", "24h")
	v.SetDefault("notifications.maintenance.expiry_schedule", "@every 1h")
	v.SetDefault("notifications.maintenance.audit_schedule", "@daily")
	v.SetDefault("notifications.maintenance.push_schedule", "@daily")
	v.SetDefault("notifications.maintenance.cache_schedule", "@every 15m")
	v.SetDefault("notifications.maintenance.audit_retention_days", 90)
	v.SetDefault("notifications.maintenance.inactive_push_retention", "720h")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
