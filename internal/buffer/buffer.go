package buffer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zabari/chatspeaker/internal/message"
)

const DefaultCapacity = 100

// Buffer is a bounded, insertion-ordered store of chat events. Adapters
// may add concurrently; eviction is oldest-first and never reorders the
// surviving events.
type Buffer struct {
	mu       sync.Mutex
	events   []message.Event
	capacity int
}

// New creates a buffer holding at most capacity events. A capacity of
// zero or less falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		events:   make([]message.Event, 0, capacity),
		capacity: capacity,
	}
}

// Add assigns the event a unique ID, appends it, and evicts from the
// front if the buffer is over capacity. The stored event is returned.
func (b *Buffer) Add(evt message.Event) message.Event {
	evt.ID = uuid.NewString()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, evt)
	if len(b.events) > b.capacity {
		b.events = b.events[len(b.events)-b.capacity:]
	}
	return evt
}

// All returns a snapshot of every buffered event in insertion order.
func (b *Buffer) All() []message.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]message.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Since returns a snapshot of events with a timestamp strictly after t.
func (b *Buffer) Since(t time.Time) []message.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []message.Event
	for _, evt := range b.events {
		if evt.Timestamp.After(t) {
			out = append(out, evt)
		}
	}
	return out
}

// Clear drops every buffered event.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = b.events[:0]
}

// Size returns the number of buffered events.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
