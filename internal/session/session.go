// Package session runs the client side of the notification stream: it keeps the live
// list and unread badge in sync with real-time events and decides, with the locally
// cached preferences, whether an incoming notification becomes a toast or a system
// notification.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/studytrack/notifyd/internal/eligibility"
	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/realtime"
	"github.com/studytrack/notifyd/internal/toast"
	"github.com/studytrack/notifyd/pkg/logger"
)

// Displayer shows a system level notification. push.Manager satisfies it.
type Displayer interface {
	ShowNotification(ctx context.Context, n notify.Notification) bool
}

// Options seeds a Session. Zero values fall back to an empty list, a fresh toast manager
// with default durations and a wall-clock eligibility engine.
type Options struct {
	Preferences   *notify.Preferences
	Notifications []notify.Notification
	UnreadCount   int64
	Toasts        *toast.Manager
	Durations     *toast.Durations
	Push          Displayer
	Engine        *eligibility.Engine
	// OnChange is called after every applied event, outside the session lock, on the
	// goroutine running Run. It may call Close.
	OnChange func(event string)
}

// Session is one live client attached to a realtime source.
type Session struct {
	userID    string
	source    realtime.Source
	toasts    *toast.Manager
	durations toast.Durations
	push      Displayer
	engine    *eligibility.Engine
	onChange  func(string)
	log       *zap.Logger

	mu     sync.RWMutex
	items  []notify.Notification
	unread int64
	prefs  *notify.Preferences

	started    atomic.Bool
	inCallback atomic.Bool
	stop       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

// New constructs a Session for userID consuming source.
func New(userID string, source realtime.Source, opts Options) (*Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("session: user id is required")
	}
	if source == nil {
		return nil, errors.New("session: source is required")
	}

	s := &Session{
		userID:    userID,
		source:    source,
		toasts:    opts.Toasts,
		durations: toast.DefaultDurations(),
		push:      opts.Push,
		engine:    opts.Engine,
		onChange:  opts.OnChange,
		log:       logger.WithModule("session").With(zap.String("user_id", userID)),
		items:     append([]notify.Notification(nil), opts.Notifications...),
		unread:    max(opts.UnreadCount, 0),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if s.toasts == nil {
		s.toasts = toast.NewManager()
	}
	if opts.Durations != nil {
		s.durations = *opts.Durations
	}
	if s.engine == nil {
		s.engine = eligibility.New()
	}
	if opts.Preferences != nil {
		prefs := opts.Preferences.Clone()
		s.prefs = &prefs
	}
	return s, nil
}

// Run applies events until ctx is cancelled, the source closes or Close is called.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session: already running")
	}
	defer func() {
		select {
		case <-s.stop:
			s.toasts.Close()
		default:
		}
		close(s.done)
	}()

	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-s.stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-s.source.C():
			if !ok {
				return nil
			}
			select {
			case <-s.stop:
				return nil
			default:
			}
			s.apply(ctx, msg)
		}
	}
}

// Close stops the session. When it returns no further event is applied and no toast or
// push callback will be started by this session. An OnChange call already in progress
// may still be finishing; Run then closes the toast queue on its way out.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.source.Close()
		if s.started.Load() {
			if s.inCallback.Load() {
				return
			}
			<-s.done
		}
		s.toasts.Close()
	})
}

// Notifications returns the live list, newest first.
func (s *Session) Notifications() []notify.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]notify.Notification(nil), s.items...)
}

// UnreadCount returns the badge value. It is never negative.
func (s *Session) UnreadCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Preferences returns a copy of the cached preferences, or nil when none are known.
func (s *Session) Preferences() *notify.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.prefs == nil {
		return nil
	}
	prefs := s.prefs.Clone()
	return &prefs
}

// Toasts returns the visible toasts, newest first.
func (s *Session) Toasts() []toast.Toast {
	return s.toasts.Toasts()
}

// ToastManager exposes the queue so a UI can dismiss toasts or trigger their actions.
func (s *Session) ToastManager() *toast.Manager {
	return s.toasts
}

func (s *Session) apply(ctx context.Context, msg realtime.Message) {
	if msg.Stream != "" && msg.Stream != realtime.StreamNotifications {
		return
	}

	data := msg.Data
	if data == nil {
		data = &realtime.Payload{}
	}

	changed := false
	switch msg.Event {
	case realtime.EventNotificationCreated:
		changed = s.handleCreated(ctx, data.Notification)
	case realtime.EventNotificationRead:
		changed = s.handleRead(data)
	case realtime.EventNotificationReadAll:
		changed = s.handleReadAll(data)
	case realtime.EventNotificationArchived, realtime.EventNotificationDeleted:
		changed = s.handleRemoved(data)
	case realtime.EventPreferencesUpdated:
		changed = s.handlePreferences(data.Preferences)
	default:
		return
	}

	if changed && s.onChange != nil {
		s.inCallback.Store(true)
		defer s.inCallback.Store(false)
		s.onChange(msg.Event)
	}
}

func (s *Session) handleCreated(ctx context.Context, n *notify.Notification) bool {
	if n == nil || n.ID == "" || n.UserID != "" && n.UserID != s.userID {
		return false
	}
	incoming := *n

	s.mu.Lock()
	idx := s.indexOf(incoming.ID)
	if idx >= 0 {
		existing := s.items[idx]
		// A repeat of a grouped notification carries a higher count; anything else is a
		// duplicate delivery.
		if incoming.GroupCount <= existing.GroupCount {
			s.mu.Unlock()
			return false
		}
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		if existing.IsUnread() {
			s.unread--
		}
	}
	s.items = append([]notify.Notification{incoming}, s.items...)
	if incoming.IsUnread() {
		s.unread++
	}
	prefs := s.prefs
	s.mu.Unlock()

	s.surface(ctx, prefs, incoming)
	return true
}

func (s *Session) surface(ctx context.Context, prefs *notify.Preferences, n notify.Notification) {
	select {
	case <-s.stop:
		return
	default:
	}

	inApp := s.engine.Decide(prefs, n.Type, n.Priority, notify.ChannelInApp)
	if inApp.Allowed {
		s.toasts.Add(toast.FromNotification(n, s.durations))
	} else {
		s.log.Debug("toast suppressed", zap.String("notification_id", n.ID), zap.String("reason", string(inApp.Reason)))
	}

	if s.push == nil {
		return
	}
	if !s.engine.ShouldNotify(prefs, n.Type, n.Priority, notify.ChannelPush) {
		return
	}
	if !s.push.ShowNotification(ctx, n) {
		s.log.Debug("system notification not shown", zap.String("notification_id", n.ID))
	}
}

func (s *Session) handleRead(data *realtime.Payload) bool {
	ids := data.NotificationIDs
	if data.NotificationID != "" {
		ids = append([]string{data.NotificationID}, ids...)
	}
	if len(ids) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		idx := s.indexOf(id)
		if idx >= 0 {
			if !s.items[idx].IsUnread() {
				continue
			}
			s.items[idx].Status = notify.StatusRead
		}
		s.unread--
	}
	s.syncUnread(data.UnreadCount)
	return true
}

func (s *Session) handleReadAll(data *realtime.Payload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].IsUnread() {
			s.items[i].Status = notify.StatusRead
		}
	}
	s.unread = 0
	s.syncUnread(data.UnreadCount)
	return true
}

func (s *Session) handleRemoved(data *realtime.Payload) bool {
	ids := data.NotificationIDs
	if data.NotificationID != "" {
		ids = append([]string{data.NotificationID}, ids...)
	}
	if len(ids) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		idx := s.indexOf(id)
		if idx < 0 {
			continue
		}
		if s.items[idx].IsUnread() {
			s.unread--
		}
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
	s.syncUnread(data.UnreadCount)
	return true
}

func (s *Session) handlePreferences(prefs *notify.Preferences) bool {
	if prefs == nil {
		return false
	}
	next := prefs.Clone()
	s.mu.Lock()
	s.prefs = &next
	s.mu.Unlock()
	return true
}

// syncUnread prefers the server's count when the event carries one and keeps the badge
// non-negative. Callers hold s.mu.
func (s *Session) syncUnread(server *int64) {
	if server != nil {
		s.unread = *server
	}
	if s.unread < 0 {
		s.unread = 0
	}
}

func (s *Session) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
