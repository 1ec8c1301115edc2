package monitor

import (
	"sync"

	"github.com/banshee-data/line-detector/internal/pipeline"
)

// historySize is the number of recent changes kept for new clients and the
// debug chart.
const historySize = 64

// clientBuffer is the per-client queue. A client that falls this far behind
// misses changes rather than stalling the publisher.
const clientBuffer = 16

// Hub fans pattern changes out to websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[chan pipeline.Change]struct{}
	history []pipeline.Change
	dropped uint64
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[chan pipeline.Change]struct{})}
}

// Publish delivers c to every client without blocking.
func (h *Hub) Publish(c pipeline.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.history) == historySize {
		copy(h.history, h.history[1:])
		h.history = h.history[:historySize-1]
	}
	h.history = append(h.history, c)

	for ch := range h.clients {
		select {
		case ch <- c:
		default:
			h.dropped++
		}
	}
}

// History returns the most recent changes, oldest first.
func (h *Hub) History() []pipeline.Change {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pipeline.Change(nil), h.history...)
}

// Dropped returns how many client deliveries were skipped.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *Hub) subscribe() chan pipeline.Change {
	ch := make(chan pipeline.Change, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan pipeline.Change) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
