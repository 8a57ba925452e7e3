package auth

import (
	"sync"
	"time"
)

// Auth state event types pushed to connected browsers.
const (
	EventSignedIn    = "SIGNED_IN"
	EventSignedOut   = "SIGNED_OUT"
	EventUserUpdated = "USER_UPDATED"
)

// Event is an auth state change.
type Event struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id,omitempty"`
	Email  string    `json:"email,omitempty"`
	At     time.Time `json:"at"`
}

const subscriberBuffer = 8

// Hub fans auth events out to the subscribers of a visitor. Slow
// subscribers miss events rather than block publishers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers for events of visitor. Call the returned func to
// unsubscribe; it closes the channel.
func (h *Hub) Subscribe(visitor string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[visitor] == nil {
		h.subs[visitor] = make(map[chan Event]struct{})
	}
	h.subs[visitor][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[visitor], ch)
			if len(h.subs[visitor]) == 0 {
				delete(h.subs, visitor)
			}
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber of visitor.
func (h *Hub) Publish(visitor string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[visitor] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many subscribers visitor has.
func (h *Hub) Subscribers(visitor string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[visitor])
}
