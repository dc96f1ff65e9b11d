package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tabletalk/internal/adapters/events"
	"tabletalk/internal/adapters/remote"
	queueStore "tabletalk/internal/adapters/storage/queue"
	"tabletalk/internal/domain/action"
)

// SyncExecutor drains the durable queue against the remote endpoint.
type SyncExecutor struct {
	store  queueStore.Store
	client remote.Client
	hub    *events.Hub

	baseDelay time.Duration
	maxDelay  time.Duration
	now       func() time.Time

	// Serializes passes; replay order is only meaningful one pass at a time.
	mu sync.Mutex
}

// NewSyncExecutor creates an executor with the default backoff policy.
func NewSyncExecutor(store queueStore.Store, client remote.Client, hub *events.Hub) *SyncExecutor {
	return &SyncExecutor{
		store:     store,
		client:    client,
		hub:       hub,
		baseDelay: 30 * time.Second,
		maxDelay:  1 * time.Hour,
		now:       time.Now,
	}
}

// ProcessPending runs one sync pass: snapshot the queue, replay it strictly
// in enqueue order, classify each outcome. Item-level failures never abort
// the pass; only a queue snapshot failure does.
// PRE: Context is valid
// POST: Every ready item was attempted once; removed items are gone before
// the batched sync-completed event is published
func (e *SyncExecutor) ProcessPending(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, err := e.store.ListPending(ctx)
	if err != nil {
		err = fmt.Errorf("list pending queue items: %w", err)
		slog.Error("sync_pass_failed", "error", err.Error())
		if e.hub != nil {
			e.hub.Publish(events.TopicSyncFailed, events.SyncFailed{Err: err})
		}
		return err
	}

	var succeeded, failed []string
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if !item.ReadyForAttempt(e.now(), e.baseDelay, e.maxDelay) {
			continue
		}
		outcome, err := e.processItem(ctx, item)
		if err != nil {
			slog.Error("sync_item_error", "item_id", item.ID, "error", err.Error())
			continue
		}
		switch outcome {
		case remote.OutcomeSucceeded:
			succeeded = append(succeeded, item.ID)
		case remote.OutcomePermanent:
			failed = append(failed, item.ID)
		}
	}

	slog.Info("sync_pass_complete", "pending", len(items), "succeeded", len(succeeded), "failed", len(failed))
	// Published even when nothing was processed: observers use it as the
	// "pass finished" signal, not just as a delivery report.
	if e.hub != nil {
		e.hub.Publish(events.TopicSyncCompleted, events.SyncCompleted{
			Succeeded: succeeded,
			Failed:    failed,
		})
	}
	return nil
}

// processItem attempts one queued item and applies the outcome policy:
// delivered or poisoned items are removed, transient failures keep the item
// queued with its retry bookkeeping advanced, and a transient failure that
// exhausts the budget removes the item as failed-permanent.
func (e *SyncExecutor) processItem(ctx context.Context, item action.Item) (string, error) {
	item.MarkAttempt(e.now())

	result, err := e.client.PostAction(ctx, item.Kind, item.Payload)
	outcome := result.Outcome
	if err != nil {
		// Transport-level failure: never reached the server.
		outcome = remote.OutcomeTransient
		slog.Warn("sync_item_unreachable", "item_id", item.ID, "attempt", item.RetryCount, "error", err.Error())
	}

	switch outcome {
	case remote.OutcomeSucceeded:
		slog.Info("sync_item_succeeded", "item_id", item.ID, "kind", item.Kind)
		return outcome, e.removeItem(ctx, item)

	case remote.OutcomePermanent:
		slog.Warn("sync_item_rejected", "item_id", item.ID, "status", result.StatusCode)
		return outcome, e.removeItem(ctx, item)

	default:
		if !item.CanRetry() {
			slog.Warn("sync_item_abandoned", "item_id", item.ID, "attempts", item.RetryCount)
			return remote.OutcomePermanent, e.removeItem(ctx, item)
		}
		if err := e.store.Save(ctx, item); err != nil {
			return "", fmt.Errorf("save retry state: %w", err)
		}
		return remote.OutcomeTransient, nil
	}
}

func (e *SyncExecutor) removeItem(ctx context.Context, item action.Item) error {
	if err := e.store.Delete(ctx, item.ID); err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	if e.hub != nil {
		e.hub.Publish(events.TopicQueueChanged, events.QueueChanged{
			Action: events.QueueActionRemoved,
			Item:   item,
		})
	}
	return nil
}
