package toast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultMaxToasts bounds the visible queue when no limit is configured.
const DefaultMaxToasts = 5

type state int

const (
	statePending state = iota
	stateDismissed
)

type entry struct {
	toast Toast
	timer clockwork.Timer
	state state
}

type dismissal struct {
	toast  Toast
	reason DismissReason
}

func (d dismissal) notify() {
	if d.toast.OnDismiss != nil {
		d.toast.OnDismiss(d.toast.ID, d.reason)
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects the clock driving auto-dismiss timers.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithMaxToasts sets the queue capacity. Values below one fall back to DefaultMaxToasts.
func WithMaxToasts(limit int) Option {
	return func(m *Manager) {
		if limit > 0 {
			m.max = limit
		}
	}
}

// Manager owns the visible toasts of a single session. Entries are kept newest first.
// Dismissal callbacks are always invoked outside the lock.
type Manager struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	max     int
	entries []*entry
	closed  bool
}

// NewManager constructs an empty toast queue.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		clock: clockwork.NewRealClock(),
		max:   DefaultMaxToasts,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add enqueues t at the front and returns its freshly assigned id. When the queue is
// over capacity the oldest toast is evicted.
func (m *Manager) Add(t Toast) string {
	t.ID = uuid.NewString()
	t.CreatedAt = m.clock.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		dismissal{toast: t, reason: ReasonCleared}.notify()
		return t.ID
	}

	e := &entry{toast: t}
	m.entries = append([]*entry{e}, m.entries...)

	var evicted []dismissal
	for len(m.entries) > m.max {
		oldest := m.entries[len(m.entries)-1]
		m.entries = m.entries[:len(m.entries)-1]
		evicted = append(evicted, m.finish(oldest, ReasonEvicted))
	}

	if !t.Sticky() {
		e.timer = m.clock.AfterFunc(t.Duration, func() { m.expire(e) })
	}
	m.mu.Unlock()

	for _, d := range evicted {
		d.notify()
	}
	return t.ID
}

// Dismiss removes the toast with id, cancelling its timer. It reports false when the
// toast is no longer queued.
func (m *Manager) Dismiss(id string) bool {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	e := m.entries[idx]
	m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
	d := m.finish(e, ReasonManual)
	m.mu.Unlock()

	d.notify()
	return true
}

// Trigger runs the click handler of a toast action and dismisses the toast.
func (m *Manager) Trigger(id, actionID string) bool {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	var handler func()
	found := false
	for _, action := range m.entries[idx].toast.Actions {
		if action.ID == actionID {
			handler = action.OnClick
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		return false
	}
	if handler != nil {
		handler()
	}
	m.Dismiss(id)
	return true
}

// Clear dismisses every queued toast.
func (m *Manager) Clear() {
	m.mu.Lock()
	pending := m.drain()
	m.mu.Unlock()

	for _, d := range pending {
		d.notify()
	}
}

// Close clears the queue and dismisses anything added afterwards immediately.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	pending := m.drain()
	m.mu.Unlock()

	for _, d := range pending {
		d.notify()
	}
}

// Toasts returns a snapshot of the queue, newest first.
func (m *Manager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Toast, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.toast
	}
	return out
}

// Len returns the number of visible toasts.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) expire(e *entry) {
	m.mu.Lock()
	if e.state != statePending {
		m.mu.Unlock()
		return
	}
	for i, candidate := range m.entries {
		if candidate == e {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			break
		}
	}
	d := m.finish(e, ReasonTimeout)
	m.mu.Unlock()

	d.notify()
}

// finish marks e dismissed and stops its timer. Callers hold m.mu and have already
// unlinked e from the queue.
func (m *Manager) finish(e *entry, reason DismissReason) dismissal {
	e.state = stateDismissed
	if e.timer != nil {
		e.timer.Stop()
	}
	return dismissal{toast: e.toast, reason: reason}
}

func (m *Manager) drain() []dismissal {
	out := make([]dismissal, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, m.finish(e, ReasonCleared))
	}
	m.entries = nil
	return out
}

func (m *Manager) indexOf(id string) int {
	for i, e := range m.entries {
		if e.toast.ID == id {
			return i
		}
	}
	return -1
}
