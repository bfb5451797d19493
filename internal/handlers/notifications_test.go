package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studytrack/notifyd/internal/handlers/testutil"
	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/services"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
)

func TestNotificationsRequireAuthentication(t *testing.T) {
	env := testutil.NewEnv(t)

	rec := env.Request(http.MethodGet, "/api/notifications", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	resp := testutil.DecodeResponse(t, rec)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, apperrors.CodeUnauthorized, resp.Error.Code)
}

func TestCreateNotificationRequiresSendScope(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()

	body := map[string]any{
		"user_id": user.ID,
		"type":    "info",
		"title":   "Hello",
	}
	rec := env.Request(http.MethodPost, "/api/notifications", body, env.Token(user.ID))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateAndListNotifications(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()
	producer := env.ProducerToken()

	body := map[string]any{
		"user_id":  user.ID,
		"type":     "essay_graded",
		"priority": "high",
		"title":    "Essay graded",
		"message":  "Your essay scored 92",
		"link":     "/essays/42",
	}
	rec := env.Request(http.MethodPost, "/api/notifications", body, producer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created services.DeliveryResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &created)
	require.True(t, created.Success)
	require.NotEmpty(t, created.NotificationID)
	require.Contains(t, created.DeliveredChannels, notify.ChannelInApp)

	rec = env.Request(http.MethodGet, "/api/notifications", nil, env.Token(user.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := testutil.DecodeResponse(t, rec)
	var list []notify.Notification
	testutil.DecodeInto(t, resp.Data, &list)
	require.Len(t, list, 1)
	require.Equal(t, created.NotificationID, list[0].ID)
	require.Equal(t, notify.StatusUnread, list[0].Status)
	require.NotNil(t, resp.Meta)
	require.EqualValues(t, 1, resp.Meta.Total)
	require.EqualValues(t, 1, resp.Meta.UnreadCount)
	require.False(t, resp.Meta.HasMore)

	rec = env.Request(http.MethodGet, "/api/notifications/"+created.NotificationID, nil, env.Token(user.ID))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateNotificationValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()
	producer := env.ProducerToken()

	rec := env.Request(http.MethodPost, "/api/notifications", map[string]any{"user_id": user.ID, "type": "info"}, producer)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, apperrors.CodeValidation, testutil.DecodeResponse(t, rec).Error.Code)

	rec = env.Request(http.MethodPost, "/api/notifications", map[string]any{
		"user_id": "missing-user",
		"type":    "info",
		"title":   "Nobody home",
	}, producer)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsAreScopedToOwner(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser()
	other := env.CreateUser()

	result := mustCreate(t, env, owner)

	rec := env.Request(http.MethodGet, "/api/notifications/"+result.NotificationID, nil, env.Token(other.ID))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.Request(http.MethodDelete, "/api/notifications/"+result.NotificationID, nil, env.Token(other.ID))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()
	token := env.Token(user.ID)

	first := mustCreate(t, env, user)
	mustCreate(t, env, user)
	mustCreate(t, env, user)

	rec := env.Request(http.MethodGet, "/api/notifications/unread-count", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var count struct {
		UnreadCount int64 `json:"unread_count"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &count)
	require.EqualValues(t, 3, count.UnreadCount)

	rec = env.Request(http.MethodPost, "/api/notifications/"+first.NotificationID+"/read", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var read services.ReadResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &read)
	require.EqualValues(t, 1, read.Updated)
	require.EqualValues(t, 2, read.UnreadCount)

	// Marking an already-read notification is a no-op.
	rec = env.Request(http.MethodPost, "/api/notifications/read", map[string]any{"ids": []string{first.NotificationID}}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &read)
	require.EqualValues(t, 0, read.Updated)
	require.EqualValues(t, 2, read.UnreadCount)

	rec = env.Request(http.MethodPost, "/api/notifications/read-all", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &read)
	require.EqualValues(t, 2, read.Updated)
	require.EqualValues(t, 0, read.UnreadCount)
}

func TestMarkReadWithoutBodyMarksAll(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()

	mustCreate(t, env, user)
	mustCreate(t, env, user)

	rec := env.Request(http.MethodPost, "/api/notifications/read", nil, env.Token(user.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var read services.ReadResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &read)
	require.EqualValues(t, 2, read.Updated)
	require.EqualValues(t, 0, read.UnreadCount)
}

func TestDismissAndDeleteNotification(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()
	token := env.Token(user.ID)

	dismissed := mustCreate(t, env, user)
	deleted := mustCreate(t, env, user)

	rec := env.Request(http.MethodPost, "/api/notifications/"+dismissed.NotificationID+"/dismiss", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var n notify.Notification
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &n)
	require.Equal(t, notify.StatusArchived, n.Status)

	rec = env.Request(http.MethodDelete, "/api/notifications/"+deleted.NotificationID, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(http.MethodGet, "/api/notifications/"+deleted.NotificationID, nil, token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNotificationsRejectsBadTimeFilter(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()

	rec := env.Request(http.MethodGet, "/api/notifications?since=yesterday", nil, env.Token(user.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendBulkReportsPerRecipientFailures(t *testing.T) {
	env := testutil.NewEnv(t)
	first := env.CreateUser()
	second := env.CreateUser()

	body := map[string]any{
		"user_ids": []string{first.ID, "unknown-user", second.ID},
		"notification": map[string]any{
			"type":    "system",
			"title":   "Maintenance tonight",
			"message": "The platform will be read-only from 22:00 UTC",
		},
	}
	rec := env.Request(http.MethodPost, "/api/notifications/bulk", body, env.ProducerToken())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result services.BulkResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &result)
	require.Equal(t, 3, result.Total)
	require.Equal(t, 2, result.Successful)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	require.Equal(t, "unknown-user", result.Errors[0].UserID)
}

func TestSendBulkRequiresRecipients(t *testing.T) {
	env := testutil.NewEnv(t)

	body := map[string]any{
		"user_ids":     []string{},
		"notification": map[string]any{"type": "system", "title": "Empty"},
	}
	rec := env.Request(http.MethodPost, "/api/notifications/bulk", body, env.ProducerToken())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateFromTemplate(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser()

	rec := env.Request(http.MethodGet, "/api/notifications/templates", nil, env.Token(user.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	var templates []models.NotificationTemplate
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &templates)
	require.NotEmpty(t, templates)

	body := map[string]any{
		"user_id":  user.ID,
		"template": "essay_graded",
		"variables": map[string]any{
			"essayTitle": "The Industrial Revolution",
			"score":      88,
			"essayId":    "essay-7",
		},
	}
	rec = env.Request(http.MethodPost, "/api/notifications/template", body, env.ProducerToken())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result services.DeliveryResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &result)
	require.NotNil(t, result.Notification)
	require.Equal(t, notify.TypeEssayGraded, result.Notification.Type)
	require.Contains(t, result.Notification.Message, "The Industrial Revolution")

	body["template"] = "does_not_exist"
	rec = env.Request(http.MethodPost, "/api/notifications/template", body, env.ProducerToken())
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func mustCreate(t *testing.T, env *testutil.Env, user *models.User) *services.DeliveryResult {
	t.Helper()

	body := map[string]any{
		"user_id": user.ID,
		"type":    "study_reminder",
		"title":   "Time to study",
		"message": "Your biology deck is waiting",
	}
	rec := env.Request(http.MethodPost, "/api/notifications", body, env.ProducerToken())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result services.DeliveryResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, rec).Data, &result)
	return &result
}
