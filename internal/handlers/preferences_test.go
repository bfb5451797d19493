package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studytrack/notifyd/internal/handlers/testutil"
	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/push"
)

func TestPreferencesDefaultsOnFirstAccess(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()

	rec := env.Request(http.MethodGet, "/api/notifications/preferences", nil, env.Token(user.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var prefs notify.Preferences
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &prefs)
	require.Equal(t, user.ID, prefs.UserID)
	require.True(t, prefs.GlobalEnabled)
	require.True(t, prefs.Channels.InApp)
	require.False(t, prefs.QuietHours.Enabled)
}

func TestPreferencesPatchMergesFields(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()
	token := env.Token(user.ID)

	patch := map[string]any{
		"quiet_hours": map[string]any{
			"enabled":  true,
			"start":    "21:30",
			"timezone": "Europe/Berlin",
		},
		"channels": map[string]any{"email": false},
	}
	rec := env.Request(http.MethodPatch, "/api/notifications/preferences", patch, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var prefs notify.Preferences
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &prefs)
	require.True(t, prefs.QuietHours.Enabled)
	require.Equal(t, "21:30", prefs.QuietHours.Start)
	require.Equal(t, notify.DefaultWindowEnd, prefs.QuietHours.End)
	require.Equal(t, "Europe/Berlin", prefs.QuietHours.Timezone)
	require.False(t, prefs.Channels.Email)
	require.True(t, prefs.Channels.InApp)

	rec = env.Request(http.MethodGet, "/api/notifications/preferences", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &prefs)
	require.Equal(t, "21:30", prefs.QuietHours.Start)
}

func TestPreferencesPatchRejectsBadClock(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()

	patch := map[string]any{"do_not_disturb_start": "25:00"}
	rec := env.Request(http.MethodPatch, "/api/notifications/preferences", patch, env.Token(user.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGlobalDisableSuppressesInApp(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()

	rec := env.Request(http.MethodPatch, "/api/notifications/preferences", map[string]any{"global_enabled": false}, env.Token(user.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	result := mustCreate(t, env, user)
	require.Empty(t, result.DeliveredChannels)
}

func TestPushVAPIDKey(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()

	rec := env.Request(http.MethodGet, "/api/push/vapid-key", nil, env.Token(user.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		PublicKey string `json:"public_key"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &body)
	require.Equal(t, testutil.TestVAPIDPublicKey, body.PublicKey)
}

func TestPushDisabledReportsCapability(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithPushDisabled())
	user := env.CreateUser()

	rec := env.Request(http.MethodGet, "/api/push/vapid-key", nil, env.Token(user.ID))
	require.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = env.Request(http.MethodPost, "/api/push/subscriptions", map[string]any{
		"endpoint": "https://push.example.com/send/abc",
		"keys":     map[string]any{"p256dh": "key", "auth": "secret"},
	}, env.Token(user.ID))
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestPushSubscribeAndUnsubscribe(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()
	token := env.Token(user.ID)
	endpoint := "https://push.example.com/send/abc"

	rec := env.Request(http.MethodPost, "/api/push/subscriptions", map[string]any{
		"endpoint": endpoint,
		"keys":     map[string]any{"p256dh": "client-public-key", "auth": "client-auth"},
		"device":   map[string]any{"browser": "firefox"},
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var record push.Record
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &record)
	require.Equal(t, user.ID, record.UserID)
	require.Equal(t, "web", record.Device.Platform)

	var stored models.PushSubscription
	require.NoError(t, env.DB.Where("endpoint = ?", endpoint).First(&stored).Error)
	require.True(t, stored.IsActive)
	require.Equal(t, "firefox", stored.Browser)

	rec = env.Request(http.MethodDelete, "/api/push/subscriptions", map[string]any{"endpoint": endpoint}, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.PushSubscription{}).Where("endpoint = ?", endpoint).Count(&count).Error)
	require.Zero(t, count)
}

func TestPushSubscribeValidatesEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()

	rec := env.Request(http.MethodPost, "/api/push/subscriptions", map[string]any{
		"endpoint": "not a url",
		"keys":     map[string]any{"p256dh": "k", "auth": "a"},
	}, env.Token(user.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.Request(http.MethodPost, "/api/push/subscriptions", map[string]any{
		"endpoint": "https://push.example.com/send/def",
	}, env.Token(user.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
