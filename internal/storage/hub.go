package storage

import (
	"sync"

	"github.com/google/uuid"
)

// Hub fans document changes out to in-process subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[string]func(Fields)
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[string]func(Fields))}
}

// Add registers fn for user and returns its subscription id.
func (h *Hub) Add(user string, fn func(Fields)) string {
	id := uuid.NewString()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[user] == nil {
		h.subs[user] = make(map[string]func(Fields))
	}
	h.subs[user][id] = fn
	return id
}

// Remove drops a subscription. Unknown ids are ignored.
func (h *Hub) Remove(user, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[user], id)
	if len(h.subs[user]) == 0 {
		delete(h.subs, user)
	}
}

// Publish delivers doc to every subscriber of user. Callbacks run on the
// caller's goroutine without the hub lock held, each with its own copy.
func (h *Hub) Publish(user string, doc Fields) {
	h.mu.RLock()
	fns := make([]func(Fields), 0, len(h.subs[user]))
	for _, fn := range h.subs[user] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(doc.Clone())
	}
}

// Len returns the number of live subscriptions for user.
func (h *Hub) Len(user string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[user])
}
