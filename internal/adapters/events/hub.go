// Package events provides the in-process event bus that decouples UI
// observers from the sync engine. Late subscribers miss prior events: the UI
// derives current state by re-querying the queue and uses events only as a
// refresh signal.
package events

import (
	"github.com/juju/pubsub/v2"

	"tabletalk/internal/domain/action"
)

// Topics exposed to observers.
const (
	TopicQueueChanged        = "queue-changed"
	TopicConnectivityChanged = "connectivity-changed"
	TopicSyncCompleted       = "sync-completed"
	TopicSyncFailed          = "sync-failed"
)

// Queue change actions for QueueChanged.Action.
const (
	QueueActionEnqueued = "enqueued"
	QueueActionRemoved  = "removed"
)

// QueueChanged is published whenever the durable queue is mutated.
type QueueChanged struct {
	Action string
	Item   action.Item
}

// ConnectivityChanged is published on online/offline transitions.
type ConnectivityChanged struct {
	IsOnline bool
}

// SyncCompleted is the single batched outcome of one sync pass.
type SyncCompleted struct {
	Succeeded []string // ids delivered
	Failed    []string // ids removed as failed-permanent
}

// SyncFailed is published when a sync pass aborts before classifying items,
// e.g. the queue snapshot itself could not be read.
type SyncFailed struct {
	Err error
}

// Hub is the engine's event bus.
type Hub struct {
	hub *pubsub.SimpleHub
}

// NewHub creates an event bus with no retained history.
func NewHub() *Hub {
	return &Hub{hub: pubsub.NewSimpleHub(nil)}
}

// Publish sends data to current subscribers of topic. The returned channel is
// closed once every subscriber's handler has run; callers that don't care
// simply drop it.
func (h *Hub) Publish(topic string, data any) <-chan struct{} {
	wait := h.hub.Publish(topic, data)
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	return done
}

// Subscribe registers a handler for topic and returns its unsubscribe func.
// Handlers run outside the publisher's goroutine and must not block for long.
func (h *Hub) Subscribe(topic string, handler func(topic string, data any)) func() {
	return h.hub.Subscribe(topic, handler)
}
