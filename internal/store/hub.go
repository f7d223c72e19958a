package store

import "sync"

// Hub fans change signals out to per-user watchers. Backends embed a Hub
// and call Broadcast after every committed write.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[int]chan struct{}
	next int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan struct{})}
}

// Watch returns a signal channel for the user's changes. Signals are
// coalesced: a watcher that has not consumed a pending signal does not
// accumulate more.
func (h *Hub) Watch(userID string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan struct{}, 1)
	id := h.next
	h.next++
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan struct{})
	}
	h.subs[userID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if m, ok := h.subs[userID]; ok {
			if sub, ok := m[id]; ok {
				delete(m, id)
				close(sub)
			}
			if len(m) == 0 {
				delete(h.subs, userID)
			}
		}
	}
	return ch, cancel
}

// Broadcast signals every watcher of userID.
func (h *Hub) Broadcast(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
