package notify

import (
	"sync"
	"sync/atomic"

	"github.com/aequitas-ai/lvcop-go/client"
)

// DefaultHubBuffer is the per-subscriber channel capacity when none is given.
const DefaultHubBuffer = 16

// Hub fans failures out to subscribers over buffered channels. Publish
// never blocks: when a subscriber's buffer is full the failure is dropped
// for that subscriber and counted.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan client.Failure
	nextID uint64
	buffer int
	closed bool

	dropped atomic.Uint64
}

// NewHub creates a hub. buffer is the per-subscriber channel capacity;
// values below one fall back to DefaultHubBuffer.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultHubBuffer
	}
	return &Hub{
		subs:   make(map[uint64]chan client.Failure),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber and returns its channel together with a
// cancel function. Cancel closes the channel; failures already buffered
// remain readable until drained. Cancel is safe to call more than once.
func (h *Hub) Subscribe() (<-chan client.Failure, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan client.Failure, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; !ok {
			h.mu.Unlock()
			return
		}
		delete(h.subs, id)
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish implements client.Notifier. It delivers the failure to every
// subscriber whose buffer has room and never blocks.
func (h *Hub) Publish(failure client.Failure) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- failure:
		default:
			h.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped because a subscriber
// buffer was full.
func (h *Hub) Dropped() uint64 {
	if h == nil {
		return 0
	}
	return h.dropped.Load()
}

// Close closes every subscriber channel. Publish after Close is a no-op
// and later Subscribe calls return an already closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
