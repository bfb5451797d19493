package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studytrack/notifyd/internal/app"
	"github.com/studytrack/notifyd/internal/database"
)

func newTestConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg := &app.Config{
		Database: app.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "notifyd.sqlite"),
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
		Auth: app.AuthConfig{JWT: app.JWTSettings{Issuer: "notifyd", TTL: time.Minute}},
		Notifications: app.NotificationsConfig{
			DefaultTimezone: "UTC",
			Push:            app.PushConfig{Enabled: true, Subscriber: "ops@example.com"},
		},
	}
	return cfg
}

func TestBootstrapRuntimeServesHealth(t *testing.T) {
	cfg := newTestConfig(t)

	generated, err := app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.NoError(t, ensureSecretsPresent(cfg))

	stack, err := bootstrapRuntime(context.Background(), cfg, generated, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, stack.Shutdown(context.Background()))
	})

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	stored, err := database.GetSystemSetting(context.Background(), stack.DB, database.VAPIDPublicKeySetting)
	require.NoError(t, err)
	require.Equal(t, cfg.Notifications.Push.VAPIDPublicKey, stored)
}

func TestBootstrapRuntimeAdoptsStoredSecrets(t *testing.T) {
	cfg := newTestConfig(t)

	generated, err := app.ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	stack, err := bootstrapRuntime(context.Background(), cfg, generated, zap.NewNop())
	require.NoError(t, err)
	firstSecret := cfg.Auth.JWT.Secret
	require.NoError(t, stack.Shutdown(context.Background()))

	// A restart without configured secrets generates fresh ones, then adopts the stored values.
	restart := newTestConfig(t)
	restart.Database.Path = cfg.Database.Path
	generated, err = app.ApplyRuntimeDefaults(restart)
	require.NoError(t, err)
	require.NotEqual(t, firstSecret, restart.Auth.JWT.Secret)

	stack, err = bootstrapRuntime(context.Background(), restart, generated, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stack.Shutdown(context.Background()) })

	require.Equal(t, firstSecret, restart.Auth.JWT.Secret)
	require.Equal(t, cfg.Notifications.Push.VAPIDPublicKey, restart.Notifications.Push.VAPIDPublicKey)
}

func TestEnsureSecretsPresent(t *testing.T) {
	require.Error(t, ensureSecretsPresent(nil))

	cfg := &app.Config{}
	require.Error(t, ensureSecretsPresent(cfg))

	cfg.Auth.JWT.Secret = "  secret  "
	require.NoError(t, ensureSecretsPresent(cfg))
	require.Equal(t, "secret", cfg.Auth.JWT.Secret)

	cfg.Notifications.Push = app.PushConfig{Enabled: true, VAPIDPublicKey: "short", VAPIDPrivateKey: "short"}
	require.Error(t, ensureSecretsPresent(cfg))
}

func TestConvertDatabaseConfig(t *testing.T) {
	cfg := &app.Config{Database: app.DatabaseConfig{Driver: " PostgreSQL ", Postgres: app.DBAuthConfig{
		Host:     "db.internal",
		Port:     5432,
		Database: "notifyd",
		Username: "notifyd",
		Password: "secret",
	}}}

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.internal", dbCfg.Host)
	require.Equal(t, 5432, dbCfg.Port)
	require.Equal(t, "notifyd", dbCfg.Name)

	dbCfg = convertDatabaseConfig(&app.Config{})
	require.Equal(t, "sqlite", dbCfg.Driver)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, loadEnvFile(""))
	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOTIFYD_TEST_ENV_FILE=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("NOTIFYD_TEST_ENV_FILE") })

	require.NoError(t, loadEnvFile(path))
	require.Equal(t, "loaded", os.Getenv("NOTIFYD_TEST_ENV_FILE"))
}

func TestLoadApplicationConfigRejectsMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
