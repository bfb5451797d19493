package realtime

import (
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/studytrack/notifyd/pkg/logger"
	"github.com/studytrack/notifyd/pkg/metrics"
)

const defaultBufferSize = 64

// Option customises a Hub.
type Option func(*Hub)

// WithBufferSize sets the per-subscription queue length.
func WithBufferSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithAllowedOrigins adds origins accepted by the WebSocket upgrader in addition to
// same-host and loopback origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Hub) {
		for _, origin := range origins {
			if host := hostWithoutPort(origin); host != "" {
				h.allowedOrigins[strings.ToLower(host)] = struct{}{}
			}
		}
	}
}

// Hub coordinates per-user realtime streams. Messages are enqueued while the read lock
// is held and subscriptions are only removed under the write lock, so a closed
// subscription never receives a send.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]map[string]map[*Subscription]struct{}

	bufferSize     int
	allowedOrigins map[string]struct{}
	log            *zap.Logger
	active         atomic.Int64
}

// NewHub constructs a realtime hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subscriptions:  make(map[string]map[string]map[*Subscription]struct{}),
		bufferSize:     defaultBufferSize,
		allowedOrigins: make(map[string]struct{}),
		log:            logger.WithModule("realtime"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers an in-process subscriber for userID on the given streams. The
// caller owns the returned Subscription and must Close it.
func (h *Hub) Subscribe(userID string, streams ...string) *Subscription {
	sub := &Subscription{
		hub:     h,
		userID:  strings.TrimSpace(userID),
		streams: make(map[string]struct{}),
		ch:      make(chan Message, h.bufferSize),
	}
	metrics.RealtimeSubscribers.Inc()
	h.active.Add(1)
	h.subscribe(sub, streams)
	return sub
}

// BroadcastToUser delivers a message to all subscriptions for the supplied user on a stream.
func (h *Hub) BroadcastToUser(stream, userID string, message Message) {
	stream = normalizeStream(stream)
	if stream == "" || userID == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.subscriptions[stream][userID]
	if len(targets) == 0 {
		return
	}

	message.Stream = stream
	for sub := range targets {
		h.enqueue(sub, message)
	}
}

// BroadcastToUsers delivers a message to each of the supplied user IDs on the provided stream.
func (h *Hub) BroadcastToUsers(stream string, userIDs []string, message Message) {
	for _, userID := range userIDs {
		h.BroadcastToUser(stream, userID, message)
	}
}

// SubscriberCount returns the number of live subscriptions for userID on stream.
func (h *Hub) SubscriberCount(stream, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[normalizeStream(stream)][userID])
}

// ActiveSubscriptions returns the number of open subscriptions across all users.
func (h *Hub) ActiveSubscriptions() int {
	return int(h.active.Load())
}

func (h *Hub) subscribe(sub *Subscription, streams []string) {
	if len(streams) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.closed {
		return
	}

	for _, stream := range uniqueStreams(streams) {
		if _, exists := sub.streams[stream]; exists {
			continue
		}
		if h.subscriptions[stream] == nil {
			h.subscriptions[stream] = make(map[string]map[*Subscription]struct{})
		}
		if h.subscriptions[stream][sub.userID] == nil {
			h.subscriptions[stream][sub.userID] = make(map[*Subscription]struct{})
		}

		sub.streams[stream] = struct{}{}
		h.subscriptions[stream][sub.userID][sub] = struct{}{}
	}
}

func (h *Hub) unsubscribe(sub *Subscription, streams []string) {
	if len(streams) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range uniqueStreams(streams) {
		h.removeSubscriptionLocked(sub, stream)
	}
}

func (h *Hub) removeSubscriptionLocked(sub *Subscription, stream string) {
	delete(sub.streams, stream)

	clientsByUser, ok := h.subscriptions[stream]
	if !ok {
		return
	}

	userSubs := clientsByUser[sub.userID]
	if len(userSubs) == 0 {
		return
	}

	delete(userSubs, sub)
	if len(userSubs) == 0 {
		delete(clientsByUser, sub.userID)
	}
	if len(clientsByUser) == 0 {
		delete(h.subscriptions, stream)
	}
}

// enqueue runs under h.mu.RLock. A subscriber whose buffer is full is dropped; closing
// needs the write lock so it happens on its own goroutine.
func (h *Hub) enqueue(sub *Subscription, message Message) {
	if sub.overflowed.Load() {
		return
	}
	select {
	case sub.ch <- message:
	default:
		if sub.overflowed.CompareAndSwap(false, true) {
			h.log.Warn("dropping slow subscriber", zap.String("user_id", sub.userID))
			go sub.Close()
		}
	}
}

// Subscription is a single consumer of a user's realtime messages.
type Subscription struct {
	hub     *Hub
	userID  string
	streams map[string]struct{} // guarded by hub.mu
	ch      chan Message
	closed  bool // guarded by hub.mu

	overflowed atomic.Bool
	once       sync.Once
}

// UserID returns the user the subscription belongs to.
func (s *Subscription) UserID() string {
	return s.userID
}

// C returns the message channel. It is closed once the subscription is closed.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Listen adds streams to the subscription.
func (s *Subscription) Listen(streams ...string) {
	s.hub.subscribe(s, streams)
}

// Ignore removes streams from the subscription.
func (s *Subscription) Ignore(streams ...string) {
	s.hub.unsubscribe(s, streams)
}

// Close detaches the subscription from the hub and closes its channel. No message is
// delivered after Close returns.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		for stream := range s.streams {
			h.removeSubscriptionLocked(s, stream)
		}
		s.closed = true
		h.mu.Unlock()

		close(s.ch)
		metrics.RealtimeSubscribers.Dec()
		h.active.Add(-1)
	})
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

func uniqueStreams(streams []string) []string {
	unique := make(map[string]struct{}, len(streams))
	var result []string
	for _, stream := range streams {
		if stream = normalizeStream(stream); stream != "" {
			if _, exists := unique[stream]; !exists {
				unique[stream] = struct{}{}
				result = append(result, stream)
			}
		}
	}
	return result
}
