package jobs

import (
	"sync"
	"time"

	"github.com/ehis6k/transcriber/internal/domain"
)

// Event is a sequenced progress record consumed by UI subscribers.
type Event struct {
	Seq int64 `json:"seq"`
	domain.ProgressEvent
}

// EventBus stores recent progress events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event, assigning its sequence and timestamp.
func (b *EventBus) Publish(ev domain.ProgressEvent) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	event := Event{Seq: b.nextSeq, ProgressEvent: ev}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
