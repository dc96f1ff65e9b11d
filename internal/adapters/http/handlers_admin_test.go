package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tabletalk/internal/adapters/remote"
	"tabletalk/internal/application/orchestrators"
	"tabletalk/internal/domain/action"
	"tabletalk/internal/domain/feed"
)

type stubQueueStore struct {
	mu      sync.Mutex
	items   []action.Item
	listErr error
}

func (s *stubQueueStore) GetByID(ctx context.Context, id string) (action.Item, error) {
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return action.Item{}, sql.ErrNoRows
}

func (s *stubQueueStore) Save(ctx context.Context, item action.Item) error {
	s.items = append(s.items, item)
	return nil
}

func (s *stubQueueStore) ListPending(ctx context.Context) ([]action.Item, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.items, nil
}

func (s *stubQueueStore) ListByKind(ctx context.Context, kind string) ([]action.Item, error) {
	var out []action.Item
	for _, item := range s.items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *stubQueueStore) Delete(ctx context.Context, id string) error { return nil }

func (s *stubQueueStore) Count(ctx context.Context) (int, error) { return len(s.items), nil }

type stubScheduler struct {
	mu      sync.Mutex
	reasons []string
}

func (s *stubScheduler) RequestSync(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons = append(s.reasons, reason)
}

type stubRemoteClient struct {
	result  remote.Result
	postErr error
	posts   int
}

func (c *stubRemoteClient) PostAction(ctx context.Context, kind string, payload json.RawMessage) (remote.Result, error) {
	c.posts++
	if c.postErr != nil {
		return remote.Result{}, c.postErr
	}
	return c.result, nil
}

func (c *stubRemoteClient) FetchFeed(ctx context.Context, limit, offset int) ([]remote.FeedPost, error) {
	return nil, nil
}

func (c *stubRemoteClient) CheckHealth(ctx context.Context) error { return nil }

func newTestMux(store *stubQueueStore, sched *stubScheduler) *http.ServeMux {
	return NewMux(&Handlers{
		Queue:     store,
		Scheduler: sched,
		Online:    func() bool { return true },
	})
}

func TestHandleQueueList(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &stubQueueStore{items: []action.Item{
		{ID: "a", Kind: action.KindSocialAction, Payload: []byte(`{}`), EnqueuedAt: now, MaxRetries: 3},
		{ID: "b", Kind: action.KindOrder, Payload: []byte(`{}`), EnqueuedAt: now.Add(time.Second), MaxRetries: 3},
	}}
	mux := newTestMux(store, &stubScheduler{})

	req := httptest.NewRequest("GET", "/admin/queue", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []queueItemView
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got[0].LastAttemptAt != nil {
		t.Error("never-attempted item must omit lastAttemptAt")
	}
}

func TestHandleQueueList_FilterByKind(t *testing.T) {
	store := &stubQueueStore{items: []action.Item{
		{ID: "a", Kind: action.KindSocialAction, Payload: []byte(`{}`)},
		{ID: "b", Kind: action.KindOrder, Payload: []byte(`{}`)},
	}}
	mux := newTestMux(store, &stubScheduler{})

	req := httptest.NewRequest("GET", "/admin/queue?kind=order", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var got []queueItemView
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only the order item, got %+v", got)
	}
}

func TestHandleQueueList_EmptyQueueIsEmptyArray(t *testing.T) {
	mux := newTestMux(&stubQueueStore{}, &stubScheduler{})

	req := httptest.NewRequest("GET", "/admin/queue", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func TestHandleQueueList_StorageError(t *testing.T) {
	store := &stubQueueStore{listErr: errors.New("database is locked")}
	mux := newTestMux(store, &stubScheduler{})

	req := httptest.NewRequest("GET", "/admin/queue", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHandleSyncTrigger(t *testing.T) {
	sched := &stubScheduler{}
	mux := newTestMux(&stubQueueStore{}, sched)

	req := httptest.NewRequest("POST", "/admin/sync", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	sched.mu.Lock()
	defer sched.mu.Unlock()
	if len(sched.reasons) != 1 || sched.reasons[0] != "manual" {
		t.Fatalf("expected one manual sync request, got %v", sched.reasons)
	}
}

func TestHandleSyncTrigger_MethodNotAllowed(t *testing.T) {
	mux := newTestMux(&stubQueueStore{}, &stubScheduler{})

	req := httptest.NewRequest("GET", "/admin/sync", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func newDispatchMux(store *stubQueueStore, sched *stubScheduler, client *stubRemoteClient, online bool) *http.ServeMux {
	return NewMux(&Handlers{
		Queue:     store,
		Scheduler: sched,
		Dispatch: &orchestrators.DispatchActionDeps{
			Client: client,
			Online: func() bool { return online },
			Enqueue: orchestrators.EnqueueActionDeps{
				Queue:       store,
				RequestSync: sched.RequestSync,
			},
		},
	})
}

func postAction(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/actions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleDispatchAction_OnlineDelivers(t *testing.T) {
	store := &stubQueueStore{}
	client := &stubRemoteClient{result: remote.Result{
		Outcome:    remote.OutcomeSucceeded,
		StatusCode: 200,
		Data:       []byte(`{"id":"srv-1"}`),
	}}
	mux := newDispatchMux(store, &stubScheduler{}, client, true)

	rec := postAction(mux, `{"kind":"social-action","payload":{"actionType":"like","subjectId":"post-1","actorId":"u1"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got dispatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.Success || got.Queued {
		t.Fatalf("expected direct success, got %+v", got)
	}
	if string(got.Data) != `{"id":"srv-1"}` {
		t.Errorf("expected server data, got %s", got.Data)
	}
	if len(store.items) != 0 {
		t.Fatal("direct delivery must not enqueue")
	}
}

func TestHandleDispatchAction_OfflineQueues(t *testing.T) {
	store := &stubQueueStore{}
	sched := &stubScheduler{}
	client := &stubRemoteClient{}
	mux := newDispatchMux(store, sched, client, false)

	rec := postAction(mux, `{"kind":"social-action","payload":{"actionType":"like","subjectId":"post-1","actorId":"u1"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var got dispatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.Success || !got.Queued || got.QueueID == "" {
		t.Fatalf("expected queued success, got %+v", got)
	}
	if client.posts != 0 {
		t.Fatal("offline dispatch must not touch the network")
	}
	if len(store.items) != 1 || store.items[0].ID != got.QueueID {
		t.Fatalf("queued item not persisted, store has %+v", store.items)
	}
	sched.mu.Lock()
	defer sched.mu.Unlock()
	if len(sched.reasons) != 1 || sched.reasons[0] != "enqueue" {
		t.Fatalf("expected an enqueue sync request, got %v", sched.reasons)
	}
}

func TestHandleDispatchAction_InvalidBody(t *testing.T) {
	mux := newDispatchMux(&stubQueueStore{}, &stubScheduler{}, &stubRemoteClient{}, true)

	rec := postAction(mux, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleDispatchAction_MalformedActionRejected(t *testing.T) {
	store := &stubQueueStore{}
	mux := newDispatchMux(store, &stubScheduler{}, &stubRemoteClient{}, false)

	rec := postAction(mux, `{"kind":"social-action","payload":{"actionType":"wave","actorId":"u1"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(store.items) != 0 {
		t.Fatal("malformed action must not be queued")
	}
}

func TestHandleDispatchAction_DisabledWithoutDeps(t *testing.T) {
	mux := newTestMux(&stubQueueStore{}, &stubScheduler{})

	rec := postAction(mux, `{"kind":"order","payload":{}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleFeed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mux := NewMux(&Handlers{
		Queue:     &stubQueueStore{},
		Scheduler: &stubScheduler{},
		LoadFeed: func(ctx context.Context, limit, offset int) ([]feed.CachedPost, bool, error) {
			if limit != 5 || offset != 10 {
				t.Errorf("expected limit=5 offset=10, got %d/%d", limit, offset)
			}
			return []feed.CachedPost{
				{ID: "post-1", Payload: []byte(`{"text":"hi"}`), CachedAt: now},
			}, true, nil
		},
	})

	req := httptest.NewRequest("GET", "/feed?limit=5&offset=10", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got feedView
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.FromCache {
		t.Error("expected fromCache true")
	}
	if len(got.Posts) != 1 || got.Posts[0].ID != "post-1" {
		t.Fatalf("unexpected posts: %+v", got.Posts)
	}
}

func TestHandleFeed_DisabledWithoutLoader(t *testing.T) {
	mux := newTestMux(&stubQueueStore{}, &stubScheduler{})

	req := httptest.NewRequest("GET", "/feed", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	store := &stubQueueStore{items: []action.Item{{ID: "a"}}}
	mux := newTestMux(store, &stubScheduler{})

	req := httptest.NewRequest("GET", "/admin/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["status"] != "ok" {
		t.Errorf("expected status ok, got %v", got["status"])
	}
	if got["queueSize"] != float64(1) {
		t.Errorf("expected queueSize 1, got %v", got["queueSize"])
	}
	if got["online"] != true {
		t.Errorf("expected online true, got %v", got["online"])
	}
}
