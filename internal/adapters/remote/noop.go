package remote

import (
	"context"
	"encoding/json"
	"log/slog"
)

// NoopClient is a no-op remote client for development and testing.
// Every action succeeds without touching the network.
type NoopClient struct{}

// NewNoopClient creates a new NoopClient.
func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

// PostAction logs the action and reports success.
func (c *NoopClient) PostAction(_ context.Context, kind string, payload json.RawMessage) (Result, error) {
	slog.Info("noop_post_action", "kind", kind, "bytes", len(payload))
	return Result{Outcome: OutcomeSucceeded, StatusCode: 200}, nil
}

// FetchFeed returns an empty page.
func (c *NoopClient) FetchFeed(_ context.Context, limit, offset int) ([]FeedPost, error) {
	slog.Info("noop_fetch_feed", "limit", limit, "offset", offset)
	return nil, nil
}

// CheckHealth always reports healthy.
func (c *NoopClient) CheckHealth(_ context.Context) error {
	return nil
}
