package engine

import (
	"sync"

	"github.com/Saiteja21M/studentsvc/pkg/core"
)

const subscriberBuffer = 100

// Hub broadcasts scheduler events to subscribers. Slow subscribers miss
// events rather than block the sender.
type Hub struct {
	mu   sync.RWMutex
	subs []chan core.Event
}

// Events returns a channel that receives every event emitted after the call.
func (h *Hub) Events() <-chan core.Event {
	ch := make(chan core.Event, subscriberBuffer)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel returned by Events. The channel is not closed.
func (h *Hub) Unsubscribe(ch <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, sub := range h.subs {
		if sub == ch {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			return
		}
	}
}

// Emit sends e to every subscriber without blocking.
func (h *Hub) Emit(e core.Event) {
	h.mu.RLock()
	subs := make([]chan core.Event, len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}
