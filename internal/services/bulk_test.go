package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studytrack/notifyd/internal/database/testutil"
	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/notify"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
)

func TestSendBulkCollectsPerRecipientFailures(t *testing.T) {
	fx := newNotificationFixture(t, WithNotificationConfig(NotificationConfig{BulkBatchSize: 2}))
	first := testutil.MustCreateUser(t, fx.db, "first")
	third := testutil.MustCreateUser(t, fx.db, "third")
	missing := "11111111-1111-1111-1111-111111111111"

	result, err := fx.svc.SendBulk(context.Background(), []string{first.ID, missing, third.ID}, CreateNotificationInput{
		Type:    notify.TypeSystem,
		Title:   "Maintenance tonight",
		Message: "The site will be read-only from 02:00",
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)
	require.Equal(t, 2, result.Successful)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	require.Equal(t, missing, result.Errors[0].UserID)
	require.Equal(t, apperrors.CodeNotFound, result.Errors[0].Code)

	for _, userID := range []string{first.ID, third.ID} {
		count, err := fx.svc.UnreadCount(context.Background(), userID)
		require.NoError(t, err)
		require.Equal(t, int64(1), count)
	}
}

func TestSendBulkValidationFailsEveryRecipient(t *testing.T) {
	fx := newNotificationFixture(t)
	user := testutil.MustCreateUser(t, fx.db, "solo")

	result, err := fx.svc.SendBulk(context.Background(), []string{user.ID, " "}, CreateNotificationInput{
		Type:  notify.TypeInfo,
		Title: "No message",
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	require.Zero(t, result.Successful)
	require.Equal(t, 2, result.Failed)
	for _, failure := range result.Errors {
		require.Equal(t, apperrors.CodeValidation, failure.Code)
	}
}

func TestSendBulkRequiresRecipients(t *testing.T) {
	fx := newNotificationFixture(t)

	_, err := fx.svc.SendBulk(context.Background(), nil, CreateNotificationInput{})
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

type slowDispatcher struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    int
	hold     time.Duration
}

func (d *slowDispatcher) Dispatch(ctx context.Context, _ *models.User, _ notify.Notification) error {
	d.mu.Lock()
	d.inFlight++
	d.calls++
	if d.inFlight > d.peak {
		d.peak = d.inFlight
	}
	d.mu.Unlock()

	select {
	case <-time.After(d.hold):
	case <-ctx.Done():
	}

	d.mu.Lock()
	d.inFlight--
	d.mu.Unlock()
	return nil
}

func TestSendBulkBoundsConcurrentDeliveries(t *testing.T) {
	slow := &slowDispatcher{hold: 20 * time.Millisecond}
	fx := newNotificationFixture(t,
		WithNotificationConfig(NotificationConfig{BulkBatchSize: 3}),
		WithDispatcher(notify.ChannelPush, slow),
	)

	userIDs := make([]string, 0, 10)
	for i := range 10 {
		userIDs = append(userIDs, testutil.MustCreateUser(t, fx.db, fmt.Sprintf("learner-%d", i)).ID)
	}

	result, err := fx.svc.SendBulk(context.Background(), userIDs, CreateNotificationInput{
		Type:     notify.TypeStudyReminder,
		Title:    "Exam week",
		Message:  "Review sessions start Monday",
		Channels: []notify.Channel{notify.ChannelInApp, notify.ChannelPush},
	})
	require.NoError(t, err)
	require.Equal(t, 10, result.Total)
	require.Equal(t, 10, result.Successful)
	require.Zero(t, result.Failed)

	slow.mu.Lock()
	defer slow.mu.Unlock()
	require.Equal(t, 10, slow.calls)
	require.Positive(t, slow.peak)
	require.LessOrEqual(t, slow.peak, 3)
}
