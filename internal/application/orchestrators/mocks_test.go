package orchestrators

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"

	"tabletalk/internal/adapters/remote"
	"tabletalk/internal/domain/action"
	"tabletalk/internal/domain/feed"
)

// fakeQueueStore is an in-memory queue store for orchestrator tests.
type fakeQueueStore struct {
	mu      sync.Mutex
	items   map[string]action.Item
	order   []string // insertion order, stands in for enqueued_at ASC
	saveErr error
	listErr error
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{items: map[string]action.Item{}}
}

func (s *fakeQueueStore) GetByID(ctx context.Context, id string) (action.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return action.Item{}, sql.ErrNoRows
	}
	return item, nil
}

func (s *fakeQueueStore) Save(ctx context.Context, item action.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, exists := s.items[item.ID]; !exists {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
	return nil
}

func (s *fakeQueueStore) ListPending(ctx context.Context) ([]action.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []action.Item
	for _, id := range s.order {
		if item, ok := s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *fakeQueueStore) ListByKind(ctx context.Context, kind string) ([]action.Item, error) {
	all, err := s.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	var out []action.Item
	for _, item := range all {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *fakeQueueStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

func (s *fakeQueueStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

func (s *fakeQueueStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// scriptedResponse is one canned PostAction outcome.
type scriptedResponse struct {
	result remote.Result
	err    error
}

// fakeRemoteClient records calls and replays scripted responses. When the
// script runs out it keeps returning the last response.
type fakeRemoteClient struct {
	mu        sync.Mutex
	responses []scriptedResponse
	calls     []string // payloads in call order
	kinds     []string

	feedPosts []remote.FeedPost
	feedErr   error
	healthErr error
}

func (c *fakeRemoteClient) PostAction(ctx context.Context, kind string, payload json.RawMessage) (remote.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, string(payload))
	c.kinds = append(c.kinds, kind)
	if len(c.responses) == 0 {
		return remote.Result{Outcome: remote.OutcomeSucceeded, StatusCode: 200}, nil
	}
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp.result, resp.err
}

func (c *fakeRemoteClient) FetchFeed(ctx context.Context, limit, offset int) ([]remote.FeedPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.feedErr != nil {
		return nil, c.feedErr
	}
	return c.feedPosts, nil
}

func (c *fakeRemoteClient) CheckHealth(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthErr
}

func (c *fakeRemoteClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// fakeFeedCache is an in-memory feed cache store.
type fakeFeedCache struct {
	mu     sync.Mutex
	posts  []feed.CachedPost
	putErr error
	getErr error
}

func (c *fakeFeedCache) Put(ctx context.Context, entries []feed.CachedPost) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	c.posts = append(c.posts, entries...)
	return nil
}

func (c *fakeFeedCache) Get(ctx context.Context, limit, offset int) ([]feed.CachedPost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	if offset >= len(c.posts) {
		return nil, nil
	}
	end := offset + limit
	if end > len(c.posts) {
		end = len(c.posts)
	}
	return c.posts[offset:end], nil
}

func (c *fakeFeedCache) Count(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.posts), nil
}
