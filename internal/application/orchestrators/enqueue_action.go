package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tabletalk/internal/adapters/events"
	queueStore "tabletalk/internal/adapters/storage/queue"
	"tabletalk/internal/domain/action"
)

// DefaultMaxQueueSize bounds the durable queue; enqueue past it returns
// action.ErrQueueFull rather than growing without limit.
const DefaultMaxQueueSize = 1000

// EnqueueActionInput carries input for the orchestrator.
type EnqueueActionInput struct {
	Kind       string
	Payload    json.RawMessage
	MaxRetries int // 0 means action.DefaultMaxRetries
}

// EnqueueActionDeps holds dependencies for EnqueueAction.
type EnqueueActionDeps struct {
	Queue        queueStore.Store
	Hub          *events.Hub
	RequestSync  func(reason string) // fire-and-forget; nil means no trigger
	MaxQueueSize int                 // 0 means DefaultMaxQueueSize

	GenerateID func() string    // nil means NewQueueID
	Now        func() time.Time // nil means time.Now
}

// NewQueueID generates a queue item id. The millisecond prefix keeps ids
// roughly sortable for humans reading the admin snapshot; the uuid suffix
// makes them collision-safe when the clock repeats or skews.
func NewQueueID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.New().String()[:8])
}

// ExecuteEnqueueAction validates and persists a queued action, publishes
// queue-changed, and asks the sync trigger to schedule a pass.
// PRE: Kind is a known kind, Payload is non-empty
// POST: Item is durable before the function returns; the sync request never
// blocks on the network
func ExecuteEnqueueAction(ctx context.Context, input EnqueueActionInput, deps EnqueueActionDeps) (action.Item, error) {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	generateID := func() string { return NewQueueID(now()) }
	if deps.GenerateID != nil {
		generateID = deps.GenerateID
	}
	maxSize := deps.MaxQueueSize
	if maxSize <= 0 {
		maxSize = DefaultMaxQueueSize
	}

	item := action.Item{
		ID:         generateID(),
		Kind:       input.Kind,
		Payload:    input.Payload,
		EnqueuedAt: now(),
		MaxRetries: input.MaxRetries,
	}
	if err := item.Validate(); err != nil {
		return action.Item{}, err
	}

	// Social actions carry a structured payload; reject malformed ones at
	// the door instead of poisoning the queue.
	if item.Kind == action.KindSocialAction {
		sa, err := action.DecodeSocialAction(item.Payload)
		if err != nil {
			return action.Item{}, err
		}
		if err := sa.Validate(); err != nil {
			return action.Item{}, err
		}
	}

	count, err := deps.Queue.Count(ctx)
	if err != nil {
		return action.Item{}, fmt.Errorf("count queue: %w", err)
	}
	if count >= maxSize {
		return action.Item{}, action.ErrQueueFull
	}

	if err := deps.Queue.Save(ctx, item); err != nil {
		return action.Item{}, fmt.Errorf("save queue item: %w", err)
	}

	slog.Info("action_enqueued", "item_id", item.ID, "kind", item.Kind)
	if deps.Hub != nil {
		deps.Hub.Publish(events.TopicQueueChanged, events.QueueChanged{
			Action: events.QueueActionEnqueued,
			Item:   item,
		})
	}
	if deps.RequestSync != nil {
		deps.RequestSync("enqueue")
	}

	return item, nil
}
