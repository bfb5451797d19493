package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/studytrack/notifyd/internal/api"
	"github.com/studytrack/notifyd/internal/app"
	iauth "github.com/studytrack/notifyd/internal/auth"
	sharedtestutil "github.com/studytrack/notifyd/internal/database/testutil"
	"github.com/studytrack/notifyd/internal/middleware"
	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/monitoring"
	"github.com/studytrack/notifyd/internal/monitoring/checks"
	"github.com/studytrack/notifyd/internal/realtime"
	"github.com/studytrack/notifyd/internal/services"
	"github.com/studytrack/notifyd/pkg/response"
)

// TestVAPIDPublicKey is the application server key advertised by test environments.
const TestVAPIDPublicKey = "BEl62iUYgUivxIkv69yViEuiBIa-Ib9-SkvMeAtA3LFgDzkrxZJjSgSnfckjBJuBkr3qBUYIHBQFLXYp5Nksh8U"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T             *testing.T
	DB            *gorm.DB
	Router        *gin.Engine
	JWT           *iauth.JWTService
	Hub           *realtime.Hub
	Notifications *services.NotificationService
	Preferences   *services.PreferencesService
}

// EnvOption customises the configuration used by NewEnv.
type EnvOption func(*app.Config)

// WithPushDisabled builds the router without a VAPID key.
func WithPushDisabled() EnvOption {
	return func(cfg *app.Config) {
		cfg.Notifications.Push.Enabled = false
	}
}

// WithRateLimit enables the per-caller limiter with an in-memory store.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Enabled: true, Requests: requests, Window: window}
	}
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
		Notifications: app.NotificationsConfig{
			Push: app.PushConfig{
				Enabled:        true,
				VAPIDPublicKey: TestVAPIDPublicKey,
			},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	hub := realtime.NewHub()
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)

	prefs, err := services.NewPreferencesService(db,
		services.WithPreferencesPublisher(hub),
		services.WithPreferencesAudit(audit),
	)
	require.NoError(t, err)

	notifications, err := services.NewNotificationService(db,
		services.WithNotificationPublisher(hub),
		services.WithNotificationPreferences(prefs),
		services.WithNotificationAudit(audit),
	)
	require.NoError(t, err)

	templates, err := services.NewTemplateService(db, notifications)
	require.NoError(t, err)

	subscriptions, err := services.NewPushSubscriptionService(db, audit)
	require.NoError(t, err)

	health := monitoring.NewHealthManager()
	health.RegisterLiveness(checks.Realtime(hub))
	health.RegisterReadiness(checks.Database(db, time.Second))

	deps := api.Dependencies{
		JWT:           jwtSvc,
		Notifications: notifications,
		Templates:     templates,
		Preferences:   prefs,
		Subscriptions: subscriptions,
		Hub:           hub,
		Health:        health,
	}
	if cfg.Server.RateLimit.Enabled {
		deps.RateStore = middleware.NewMemoryRateStore()
	}

	router, err := api.NewRouter(deps, cfg)
	require.NoError(t, err)

	return &Env{
		T:             t,
		DB:            db,
		Router:        router,
		JWT:           jwtSvc,
		Hub:           hub,
		Notifications: notifications,
		Preferences:   prefs,
	}
}

// CreateUser inserts a new active user with a random username and returns the record.
func (e *Env) CreateUser() *models.User {
	e.T.Helper()
	return sharedtestutil.MustCreateUser(e.T, e.DB, "student-"+uuid.NewString()[:8])
}

// Token mints an access token for userID with the supplied scopes.
func (e *Env) Token(userID string, scopes ...string) string {
	e.T.Helper()
	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID, Scopes: scopes})
	require.NoError(e.T, err)
	return token
}

// ProducerToken mints a token allowed to send notifications.
func (e *Env) ProducerToken() string {
	e.T.Helper()
	return e.Token("producer-"+uuid.NewString()[:8], iauth.ScopeSend)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
