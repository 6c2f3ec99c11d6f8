package orchestrator

import (
	"log"
	"sync/atomic"
	"time"
)

// Notifier publishes engine events to the host application.
// Publish is fire-and-forget: implementations must never block the
// caller indefinitely and must never return control flow errors into
// the engine.
type Notifier interface {
	Publish(event Event)
}

// NopNotifier discards all events. Useful for tests and for hosts that
// do not consume the event stream.
type NopNotifier struct{}

// Publish discards the event.
func (NopNotifier) Publish(Event) {}

// ChannelNotifier delivers events over a buffered channel.
// It provides a simple, thread-safe way to fan events out to a host
// event loop.
type ChannelNotifier struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewChannelNotifier creates a ChannelNotifier with the given buffer size.
func NewChannelNotifier(bufferSize int) *ChannelNotifier {
	return &ChannelNotifier{
		events: make(chan Event, bufferSize),
	}
}

// Publish sends an event to the events channel.
// If the channel is full, it tries with a timeout before dropping the event.
func (n *ChannelNotifier) Publish(event Event) {
	// Try immediate send first
	select {
	case n.events <- event:
		return
	default:
		// Channel full, try with timeout
	}

	// Try with 100ms timeout to give the receiver a chance to drain
	select {
	case n.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		// Timeout expired, drop the event
		count := n.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[orchestrator] WARNING: Event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (n *ChannelNotifier) DroppedCount() uint64 {
	return n.droppedCount.Load()
}

// Events returns a read-only channel of events.
// This is used by subscribers (CLI, projections) to receive updates.
func (n *ChannelNotifier) Events() <-chan Event {
	return n.events
}

// Close closes the events channel.
// This should be called when the engine is shut down.
func (n *ChannelNotifier) Close() {
	close(n.events)
}
