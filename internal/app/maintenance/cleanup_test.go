package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/studytrack/notifyd/internal/cache"
	testutil "github.com/studytrack/notifyd/internal/database/testutil"
	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/monitoring"
	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/services"
)

type stubAudit struct {
	days int
	err  error
}

func (s *stubAudit) CleanupOlderThan(_ context.Context, days int) (int64, error) {
	s.days = days
	return 3, s.err
}

type stubPush struct{ retention time.Duration }

func (s *stubPush) PruneInactive(_ context.Context, retention time.Duration) (int64, error) {
	s.retention = retention
	return 2, nil
}

func TestCleanerRunOnceAgainstStore(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	notifications, err := services.NewNotificationService(db, services.WithNotificationClock(clock))
	require.NoError(t, err)

	user := testutil.MustCreateUser(t, db, "cleanup-user")
	expired := now.Add(-time.Hour)
	fresh := now.Add(time.Hour)
	for i, expiresAt := range []*time.Time{&expired, &fresh, nil} {
		row := models.Notification{
			UserID:    user.ID,
			Type:      string(notify.TypeStudyReminder),
			Priority:  string(notify.PriorityNormal),
			Status:    string(notify.StatusUnread),
			Title:     "Reminder",
			Message:   "Time to study",
			ExpiresAt: expiresAt,
		}
		row.CreatedAt = now.Add(time.Duration(-i) * time.Minute)
		require.NoError(t, db.Create(&row).Error)
	}

	store := cache.NewDatabaseStore(db)
	require.NoError(t, store.Set(context.Background(), "stale", []byte("x"), time.Millisecond))
	require.NoError(t, store.Set(context.Background(), "kept", []byte("y"), 0))

	tracker := monitoring.NewMaintenanceTracker()
	c := NewCleaner(Targets{Notifications: notifications, Cache: store},
		WithNow(func() time.Time { return time.Now().Add(time.Hour) }),
		WithTracker(tracker),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)

	removed, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), removed[JobNotificationExpiry])
	require.Equal(t, int64(1), removed[JobCachePurge])

	var remaining int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&remaining).Error)
	require.Equal(t, int64(2), remaining)

	_, ok, err := store.Get(context.Background(), "kept")
	require.NoError(t, err)
	require.True(t, ok)

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 2)
	for _, job := range jobs {
		require.Equal(t, uint64(1), job.TotalRuns)
		require.Zero(t, job.ConsecutiveFailures)
	}
}

func TestCleanerCombinesFailures(t *testing.T) {
	audit := &stubAudit{err: errors.New("audit table locked")}
	push := &stubPush{}
	tracker := monitoring.NewMaintenanceTracker()

	c := NewCleaner(Targets{Audit: audit, Push: push},
		WithAuditRetentionDays(7),
		WithPushRetention(48*time.Hour),
		WithTracker(tracker),
	)

	removed, err := c.RunOnce(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "audit table locked")
	require.Equal(t, 7, audit.days)
	require.Equal(t, 48*time.Hour, push.retention)
	require.Equal(t, int64(2), removed[JobPushPrune])

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 2)
	require.Equal(t, JobAuditRetention, jobs[0].Job)
	require.Equal(t, uint64(1), jobs[0].ConsecutiveFailures)
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	tracker := monitoring.NewMaintenanceTracker()

	c := NewCleaner(Targets{Audit: &stubAudit{}, Push: &stubPush{}},
		WithCron(scheduler),
		WithTracker(tracker),
		WithSchedules("", "@every 1h", "", ""),
	)
	require.NoError(t, c.Start())
	defer c.Stop()

	require.Len(t, scheduler.Entries(), 2)
	require.Len(t, tracker.Snapshot(), 2)
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	c := NewCleaner(Targets{Audit: &stubAudit{}}, WithSchedules("", "not a schedule", "", ""))
	require.Error(t, c.Start())
}

func TestCleanerWithoutTargetsIsNoop(t *testing.T) {
	c := NewCleaner(Targets{})
	require.NoError(t, c.Start())

	removed, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.Empty(t, removed)
}
