package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultTimeout bounds a single request; a hung request must not stall the
// whole sync pass.
const DefaultTimeout = 15 * time.Second

// HTTPClient talks to the remote service over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the service at baseURL.
// PRE: baseURL is a valid absolute URL without trailing slash
// POST: Returns a ready-to-use client
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// NewHTTPClientWith creates a client using a caller-supplied http.Client,
// for tests and custom transports.
func NewHTTPClientWith(baseURL string, client *http.Client) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, client: client}
}

// PostAction replays one queued mutation against the action endpoint.
// PRE: payload is the serialized action body
// POST: 2xx/4xx/5xx classified into a Result; transport failures return error
func (c *HTTPClient) PostAction(ctx context.Context, kind string, payload json.RawMessage) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/actions", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tabletalk-Kind", kind)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("post action: %w", err)
	}
	defer resp.Body.Close()

	result := Result{StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Outcome = OutcomeSucceeded
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err == nil && len(body) > 0 {
			result.Data = json.RawMessage(body)
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		result.Outcome = OutcomePermanent
	default:
		result.Outcome = OutcomeTransient
	}

	slog.Debug("remote_post_action", "kind", kind, "status", resp.StatusCode, "outcome", result.Outcome)
	return result, nil
}

// FetchFeed reads a page of feed records from the remote service.
// PRE: limit > 0, offset >= 0
// POST: Returns the decoded page or an error
func (c *HTTPClient) FetchFeed(ctx context.Context, limit, offset int) ([]FeedPost, error) {
	u := c.baseURL + "/api/feed?" + url.Values{
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode feed page: %w", err)
	}

	posts := make([]FeedPost, 0, len(raw))
	for _, body := range raw {
		var idOnly struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &idOnly); err != nil || idOnly.ID == "" {
			return nil, fmt.Errorf("feed record missing id: %s", body)
		}
		posts = append(posts, FeedPost{ID: idOnly.ID, Payload: body})
	}
	return posts, nil
}

// CheckHealth probes the remote service's health endpoint.
// PRE: none
// POST: Returns nil on 2xx
func (c *HTTPClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health probe: unexpected status %d", resp.StatusCode)
	}
	return nil
}
