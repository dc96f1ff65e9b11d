package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"tabletalk/internal/adapters/remote"
)

// DispatchResult reports how an action was handled.
type DispatchResult struct {
	Success bool
	Queued  bool            // true when the action was enqueued for later sync
	QueueID string          // set when Queued
	Data    json.RawMessage // server response body on a direct success
}

// DispatchActionDeps holds dependencies for DispatchAction.
type DispatchActionDeps struct {
	Client  remote.Client
	Online  func() bool // connectivity monitor state
	Enqueue EnqueueActionDeps
}

// ExecuteDispatchAction tries the remote endpoint directly when online and
// falls back to the durable queue when offline or on a transient failure.
// A permanent rejection (4xx) is surfaced immediately and never queued.
// PRE: input is a valid enqueueable action
// POST: Success implies the action was either delivered or made durable
func ExecuteDispatchAction(ctx context.Context, input EnqueueActionInput, deps DispatchActionDeps) (DispatchResult, error) {
	if deps.Online != nil && !deps.Online() {
		return enqueueFallback(ctx, input, deps, "offline")
	}

	result, err := deps.Client.PostAction(ctx, input.Kind, input.Payload)
	if err != nil {
		slog.Warn("dispatch_unreachable", "kind", input.Kind, "error", err.Error())
		return enqueueFallback(ctx, input, deps, "transient")
	}

	switch result.Outcome {
	case remote.OutcomeSucceeded:
		slog.Info("dispatch_delivered", "kind", input.Kind)
		return DispatchResult{Success: true, Data: result.Data}, nil
	case remote.OutcomePermanent:
		return DispatchResult{}, fmt.Errorf("action rejected by server: status %d", result.StatusCode)
	default:
		return enqueueFallback(ctx, input, deps, "transient")
	}
}

func enqueueFallback(ctx context.Context, input EnqueueActionInput, deps DispatchActionDeps, reason string) (DispatchResult, error) {
	item, err := ExecuteEnqueueAction(ctx, input, deps.Enqueue)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("enqueue fallback: %w", err)
	}
	slog.Info("dispatch_queued", "item_id", item.ID, "kind", item.Kind, "reason", reason)
	return DispatchResult{Success: true, Queued: true, QueueID: item.ID}, nil
}
