// Package notify provides the in-process notification hub that fans
// best-effort UI notifications out to subscribers (SSE connections).
package notify

import (
	"log/slog"
	"sync"

	"certflow/internal/domain"
)

// Hub implements domain.Notifier. Publishing never blocks: a subscriber
// whose buffer is full misses the notification.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan domain.Notification
}

// NewHub returns an empty notification hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[int]chan domain.Notification),
	}
}

// Publish delivers the notification to every subscriber, dropping it for
// subscribers that cannot keep up.
func (h *Hub) Publish(n domain.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- n:
		default:
			h.logger.Warn("notification dropped for slow subscriber", "subscriber", id, "event", n.Name)
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe.
func (h *Hub) Subscribe() (<-chan domain.Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan domain.Notification, 16)
	h.subs[id] = ch

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
