package dynamicengine

import (
	"encoding/json"
	"sync"

	"github.com/streamkit/streamkit/internal/metrics"
	"github.com/streamkit/streamkit/internal/nodestate"
)

// EventKind is the closed set of events a session's telemetry bus carries.
type EventKind int

const (
	// EventTelemetry is a node-emitted observability event (see
	// node.TelemetryFunc). Best-effort: never blocks the media path.
	EventTelemetry EventKind = iota
	// EventNodeStateChanged is published whenever a node's lifecycle state
	// transitions.
	EventNodeStateChanged
	// EventMutationApplied is published after a batch mutation is applied,
	// carrying the mutation's request ID in NodeLabel.
	EventMutationApplied
)

// Event is one entry on a session's event bus.
type Event struct {
	Kind        EventKind
	NodeLabel   string
	TypeID      string
	Data        json.RawMessage
	TimestampUs *int64
	State       nodestate.State
}

// EventBus is a bounded, in-memory pub/sub for one session's telemetry and
// lifecycle events, modeled on the teacher's in-process message bus but
// single-topic: every event goes to every subscriber, and a subscriber
// whose buffer is full misses the new event (counted in
// streamkit_eventbus_dropped_total), so a telemetry consumer that falls
// behind never stalls node tasks.
type EventBus struct {
	sessionID string

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewEventBus creates an empty EventBus. capacity is not used: each
// subscriber's buffer size is the one passed to Subscribe. sessionID labels the streamkit_eventbus_dropped_total metric; an
// empty sessionID is fine for tests that don't care about the label.
func NewEventBus(capacity int, sessionID string) *EventBus {
	return &EventBus{sessionID: sessionID, subs: make(map[int]chan Event), closed: false}
}

// Subscribe returns a channel receiving every future event, and an
// unsubscribe function.
func (b *EventBus) Subscribe(capacity int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, capacity)
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// PublishNonBlocking delivers ev to every subscriber that has room, and
// silently drops it for any subscriber that doesn't. It never blocks a
// node's processing loop.
func (b *EventBus) PublishNonBlocking(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			metrics.EventBusDroppedTotal.WithLabelValues(b.sessionID).Inc()
		}
	}
}

// Close unsubscribes and closes every subscriber channel. Idempotent.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
