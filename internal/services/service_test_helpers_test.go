package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/studytrack/notifyd/internal/database/testutil"
	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/realtime"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(at time.Time) *testClock {
	return &testClock{now: at}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []realtime.Message
}

func (p *recordingPublisher) BroadcastToUser(_ string, _ string, message realtime.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func (p *recordingPublisher) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.messages))
	for _, msg := range p.messages {
		out = append(out, msg.Event)
	}
	return out
}

func (p *recordingPublisher) last() realtime.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.messages) == 0 {
		return realtime.Message{}
	}
	return p.messages[len(p.messages)-1]
}

type recordingDispatcher struct {
	mu    sync.Mutex
	sent  []notify.Notification
	err   error
	users []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, recipient *models.User, n notify.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, n)
	d.users = append(d.users, recipient.ID)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type failingPreferences struct{}

func (failingPreferences) Get(context.Context, string) (*notify.Preferences, error) {
	return nil, errors.New("preferences store offline")
}

type notificationFixture struct {
	db        *gorm.DB
	clock     *testClock
	publisher *recordingPublisher
	prefs     *PreferencesService
	audit     *AuditService
	push      *recordingDispatcher
	svc       *NotificationService
}

// newNotificationFixture wires a NotificationService at 10:00 UTC with a push dispatcher.
func newNotificationFixture(t *testing.T, opts ...NotificationOption) *notificationFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	fx := &notificationFixture{
		db:        db,
		clock:     newTestClock(time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)),
		publisher: &recordingPublisher{},
		push:      &recordingDispatcher{},
	}

	var err error
	fx.audit, err = NewAuditService(db)
	require.NoError(t, err)
	fx.prefs, err = NewPreferencesService(db, WithPreferencesAudit(fx.audit))
	require.NoError(t, err)

	base := []NotificationOption{
		WithNotificationClock(fx.clock.Now),
		WithNotificationPublisher(fx.publisher),
		WithNotificationPreferences(fx.prefs),
		WithNotificationAudit(fx.audit),
		WithDispatcher(notify.ChannelPush, fx.push),
	}
	fx.svc, err = NewNotificationService(db, append(base, opts...)...)
	require.NoError(t, err)
	return fx
}

func (fx *notificationFixture) create(t *testing.T, userID, title string) *DeliveryResult {
	t.Helper()
	result, err := fx.svc.Create(context.Background(), CreateNotificationInput{
		UserID:  userID,
		Type:    notify.TypeInfo,
		Title:   title,
		Message: title + " body",
	})
	require.NoError(t, err)
	fx.clock.Advance(time.Second)
	return result
}

func boolPtr(v bool) *bool { return &v }
