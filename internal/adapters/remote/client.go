package remote

import (
	"context"
	"encoding/json"
)

// Outcome constants classify one delivery attempt against the remote service.
const (
	// OutcomeSucceeded: 2xx. Duplicate-tolerated success counts as success.
	OutcomeSucceeded = "succeeded"
	// OutcomePermanent: 4xx. The action is intrinsically invalid and will
	// never succeed; retrying it wastes budget.
	OutcomePermanent = "failed-permanent"
	// OutcomeTransient: 5xx. Worth retrying later.
	OutcomeTransient = "failed-transient"
)

// Result is the classified response from a completed HTTP exchange. Transport
// failures (connection refused, timeout) are returned as errors instead and
// are always treated as transient by callers.
type Result struct {
	Outcome    string
	StatusCode int
	Data       json.RawMessage // response body on success, if any
}

// FeedPost is one feed record as returned by the remote read endpoint.
type FeedPost struct {
	ID      string
	Payload json.RawMessage
}

// Client is the interface to the remote service consumed by the sync engine.
type Client interface {
	// PostAction replays one queued mutation against the action endpoint.
	// PRE: payload is the serialized action body
	// POST: Returns a classified Result, or an error for transport failure
	PostAction(ctx context.Context, kind string, payload json.RawMessage) (Result, error)

	// FetchFeed reads a page of feed records.
	// PRE: limit > 0, offset >= 0
	// POST: Returns the page, or an error when the read path is unavailable
	FetchFeed(ctx context.Context, limit, offset int) ([]FeedPost, error)

	// CheckHealth probes the remote service.
	// PRE: none
	// POST: Returns nil when the service is reachable and healthy
	CheckHealth(ctx context.Context) error
}
