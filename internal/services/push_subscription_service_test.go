package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studytrack/notifyd/internal/database/testutil"
	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/push"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
)

func pushRecord(userID, endpoint string) push.Record {
	return push.Record{
		UserID:   userID,
		Endpoint: endpoint,
		Keys:     push.Keys{P256dh: "p256dh-key", Auth: "auth-secret"},
		Device:   push.Device{Platform: "desktop", Browser: "firefox", OS: "linux"},
	}
}

func TestPushSubscriptionServiceUpsertTakesOverEndpoint(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPushSubscriptionService(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	endpoint := "https://push.example/sub/1"
	require.NoError(t, svc.Upsert(ctx, pushRecord("user-a", endpoint)))
	require.NoError(t, svc.Upsert(ctx, pushRecord("user-b", endpoint)))

	var rows []models.PushSubscription
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, "user-b", rows[0].UserID)

	active, err := svc.ListActive(ctx, "user-a")
	require.NoError(t, err)
	require.Empty(t, active)

	active, err = svc.ListActive(ctx, "user-b")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "firefox", active[0].Device.Browser)
}

func TestPushSubscriptionServiceValidation(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPushSubscriptionService(db, nil)
	require.NoError(t, err)

	bad := pushRecord("user-a", "not a url")
	require.True(t, apperrors.IsCode(svc.Upsert(context.Background(), bad), apperrors.CodeValidation))

	noKeys := pushRecord("user-a", "https://push.example/sub/2")
	noKeys.Keys = push.Keys{}
	require.True(t, apperrors.IsCode(svc.Upsert(context.Background(), noKeys), apperrors.CodeValidation))
}

func TestPushSubscriptionServiceDeactivateAndPrune(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewPushSubscriptionService(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.Upsert(ctx, pushRecord("user-a", "https://push.example/gone")))
	require.NoError(t, svc.Upsert(ctx, pushRecord("user-a", "https://push.example/live")))

	require.NoError(t, svc.Deactivate(ctx, "https://push.example/gone"))
	require.NoError(t, svc.MarkDelivered(ctx, "https://push.example/live", now))

	active, err := svc.ListActive(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "https://push.example/live", active[0].Endpoint)

	var gone models.PushSubscription
	require.NoError(t, db.Where("endpoint = ?", "https://push.example/gone").First(&gone).Error)
	require.False(t, gone.IsActive)
	require.Equal(t, 1, gone.FailureCount)

	removed, err := svc.PruneInactive(ctx, time.Hour)
	require.NoError(t, err)
	require.Zero(t, removed)

	now = now.Add(2 * time.Hour)
	removed, err = svc.PruneInactive(ctx, time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestPushSubscriptionServiceDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	svc, err := NewPushSubscriptionService(db, audit)
	require.NoError(t, err)
	ctx := context.Background()

	endpoint := "https://push.example/sub/3"
	require.NoError(t, svc.Upsert(ctx, pushRecord("user-a", endpoint)))

	require.NoError(t, svc.Delete(ctx, "user-b", endpoint))
	active, err := svc.ListActive(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, svc.Delete(ctx, "user-a", endpoint))
	active, err = svc.ListActive(ctx, "user-a")
	require.NoError(t, err)
	require.Empty(t, active)

	_, total, err := audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: AuditActionPushUnsubscribe}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}
