package toast

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/studytrack/notifyd/internal/notify"
)

type dismissLog struct {
	mu    sync.Mutex
	calls map[string][]DismissReason
}

func newDismissLog() *dismissLog {
	return &dismissLog{calls: make(map[string][]DismissReason)}
}

func (l *dismissLog) record(id string, reason DismissReason) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[id] = append(l.calls[id], reason)
}

func (l *dismissLog) reasons(id string) []DismissReason {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]DismissReason(nil), l.calls[id]...)
}

func (l *dismissLog) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, reasons := range l.calls {
		n += len(reasons)
	}
	return n
}

func TestAddAssignsIDsNewestFirst(t *testing.T) {
	m := NewManager(WithClock(clockwork.NewFakeClock()))

	first := m.Add(Toast{Title: "first"})
	second := m.Add(Toast{Title: "second", ID: first})

	require.NotEmpty(t, first)
	require.NotEqual(t, first, second)

	toasts := m.Toasts()
	require.Len(t, toasts, 2)
	require.Equal(t, "second", toasts[0].Title)
	require.Equal(t, "first", toasts[1].Title)
}

func TestCapacityEvictsOldest(t *testing.T) {
	log := newDismissLog()
	m := NewManager(WithClock(clockwork.NewFakeClock()), WithMaxToasts(3))

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, m.Add(Toast{OnDismiss: log.record}))
		require.LessOrEqual(t, m.Len(), 3)
	}

	require.Equal(t, []DismissReason{ReasonEvicted}, log.reasons(ids[0]))
	require.Equal(t, []DismissReason{ReasonEvicted}, log.reasons(ids[1]))
	require.Empty(t, log.reasons(ids[4]))
	require.Equal(t, ids[4], m.Toasts()[0].ID)
}

func TestAutoDismissFiresOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := newDismissLog()
	m := NewManager(WithClock(clock))

	id := m.Add(Toast{Duration: 5 * time.Second, OnDismiss: log.record})
	clock.Advance(4 * time.Second)
	require.Equal(t, 1, m.Len())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return log.total() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []DismissReason{ReasonTimeout}, log.reasons(id))

	require.False(t, m.Dismiss(id))
	require.Equal(t, 1, log.total())
}

func TestManualDismissCancelsTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := newDismissLog()
	m := NewManager(WithClock(clock))

	id := m.Add(Toast{Duration: time.Second, OnDismiss: log.record})
	require.True(t, m.Dismiss(id))
	clock.Advance(time.Minute)

	// give a stray timer goroutine the chance to run
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, []DismissReason{ReasonManual}, log.reasons(id))
}

func TestStickyToastStaysUntilDismissed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManager(WithClock(clock))

	urgent := FromNotification(notify.Notification{ID: "n-1", Priority: notify.PriorityUrgent, Title: "Exam"}, DefaultDurations())
	require.True(t, urgent.Sticky())

	id := m.Add(urgent)
	clock.Advance(24 * time.Hour)
	require.Equal(t, 1, m.Len())
	require.True(t, m.Dismiss(id))
}

func TestClearAndClose(t *testing.T) {
	log := newDismissLog()
	m := NewManager(WithClock(clockwork.NewFakeClock()))

	a := m.Add(Toast{Duration: time.Second, OnDismiss: log.record})
	b := m.Add(Toast{OnDismiss: log.record})
	m.Clear()
	require.Zero(t, m.Len())
	require.Equal(t, []DismissReason{ReasonCleared}, log.reasons(a))
	require.Equal(t, []DismissReason{ReasonCleared}, log.reasons(b))

	c := m.Add(Toast{OnDismiss: log.record})
	m.Close()
	late := m.Add(Toast{OnDismiss: log.record})

	require.Zero(t, m.Len())
	require.Equal(t, []DismissReason{ReasonCleared}, log.reasons(c))
	require.Equal(t, []DismissReason{ReasonCleared}, log.reasons(late))
}

func TestTriggerRunsActionAndDismisses(t *testing.T) {
	log := newDismissLog()
	m := NewManager(WithClock(clockwork.NewFakeClock()))

	clicked := false
	id := m.Add(Toast{
		Actions:   []Action{{ID: "open", Label: "Open", OnClick: func() { clicked = true }}},
		OnDismiss: log.record,
	})

	require.False(t, m.Trigger(id, "missing"))
	require.True(t, m.Trigger(id, "open"))
	require.True(t, clicked)
	require.Equal(t, []DismissReason{ReasonManual}, log.reasons(id))
}

func TestConcurrentDismissalIsExactlyOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	log := newDismissLog()
	m := NewManager(WithClock(clock), WithMaxToasts(4))

	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		ids = append(ids, m.Add(Toast{Duration: time.Duration(i%3+1) * time.Second, OnDismiss: log.record}))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.Dismiss(id)
		}(id)
	}
	clock.Advance(2 * time.Second)
	wg.Wait()
	m.Clear()

	require.Eventually(t, func() bool { return log.total() == len(ids) }, time.Second, 5*time.Millisecond)
	for _, id := range ids {
		require.Len(t, log.reasons(id), 1, id)
	}
}

func TestFromNotificationDurations(t *testing.T) {
	d := DefaultDurations()
	n := notify.Notification{
		ID:      "n-2",
		Type:    notify.TypeFlashcardDue,
		Title:   "Cards due",
		Message: "12 cards are ready",
		Actions: []notify.Action{{ID: "review", Label: "Review", Action: "navigate"}},
	}

	toast := FromNotification(n, d)
	require.Equal(t, notify.PriorityNormal, toast.Priority)
	require.Equal(t, 5*time.Second, toast.Duration)
	require.Equal(t, "n-2", toast.NotificationID)
	require.Equal(t, "navigate", toast.Actions[0].Kind)

	require.Equal(t, 3*time.Second, d.For(notify.PriorityLow))
	require.Equal(t, 8*time.Second, d.For(notify.PriorityHigh))
	require.Zero(t, d.For(notify.PriorityUrgent))
}
