package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studytrack/notifyd/internal/database/testutil"
	"github.com/studytrack/notifyd/internal/notify"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
)

func TestRenderTemplate(t *testing.T) {
	vars := map[string]any{"essayTitle": "Photosynthesis", "score": 92.0, "empty": nil}

	require.Equal(t, "Essay graded: Photosynthesis", RenderTemplate("Essay graded: {essayTitle}", vars))
	require.Equal(t, "Score 92 of {max}", RenderTemplate("Score {score} of {max}", vars))
	require.Equal(t, "{empty}", RenderTemplate("{empty}", vars))
	require.Equal(t, "plain", RenderTemplate("plain", nil))
}

func TestTemplateServiceCreateFromTemplate(t *testing.T) {
	fx := newNotificationFixture(t)
	user := testutil.MustCreateUser(t, fx.db, "pat")
	svc, err := NewTemplateService(fx.db, fx.svc)
	require.NoError(t, err)

	templates, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, templates, 7)

	result, err := svc.CreateFromTemplate(context.Background(), user.ID, "essay_graded",
		map[string]any{"essayTitle": "Photosynthesis", "score": 92, "essayId": "e-9"},
		TemplateOverrides{Priority: notify.PriorityHigh, Payload: map[string]any{"score": "A"}},
	)
	require.NoError(t, err)

	n := result.Notification
	require.Equal(t, notify.TypeEssayGraded, n.Type)
	require.Equal(t, notify.PriorityHigh, n.Priority)
	require.Equal(t, "Essay graded: Photosynthesis", n.Title)
	require.Equal(t, "Your essay \"Photosynthesis\" received a score of 92.", n.Message)
	require.Equal(t, "/essays/e-9", n.Link)
	require.Equal(t, "A", n.Payload["score"])
	require.Equal(t, "essay_graded", n.Payload["template"])
	require.Equal(t, []notify.Channel{notify.ChannelInApp, notify.ChannelPush}, result.DeliveredChannels)
}

func TestTemplateServiceKeepsMissingPlaceholders(t *testing.T) {
	fx := newNotificationFixture(t)
	user := testutil.MustCreateUser(t, fx.db, "quinn")
	svc, err := NewTemplateService(fx.db, fx.svc)
	require.NoError(t, err)

	result, err := svc.CreateFromTemplate(context.Background(), user.ID, "flashcard_due",
		map[string]any{"count": 12}, TemplateOverrides{Channels: []notify.Channel{notify.ChannelInApp}})
	require.NoError(t, err)
	require.Equal(t, "12 flashcards due", result.Notification.Title)
	require.Equal(t, "You have 12 cards waiting in {deckName}.", result.Notification.Message)
	require.Equal(t, []notify.Channel{notify.ChannelInApp}, result.DeliveredChannels)
}

func TestTemplateServiceUnknownTemplate(t *testing.T) {
	fx := newNotificationFixture(t)
	user := testutil.MustCreateUser(t, fx.db, "rosa")
	svc, err := NewTemplateService(fx.db, fx.svc)
	require.NoError(t, err)

	_, err = svc.CreateFromTemplate(context.Background(), user.ID, "does_not_exist", nil, TemplateOverrides{})
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
