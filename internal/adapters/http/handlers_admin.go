// Package web exposes the engine's admin JSON surface: inspect the pending
// queue, trigger a sync pass, check health. It is an operator tool, not a
// user-facing API, and carries no auth.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	queueStore "tabletalk/internal/adapters/storage/queue"
	"tabletalk/internal/application/orchestrators"
	"tabletalk/internal/domain/action"
	"tabletalk/internal/domain/feed"
)

// SyncRequester schedules a sync pass without blocking.
type SyncRequester interface {
	RequestSync(reason string)
}

// FeedLoader serves one feed page, network-first with cache fallback.
type FeedLoader func(ctx context.Context, limit, offset int) (posts []feed.CachedPost, fromCache bool, err error)

// Handlers bundles the dependencies of the admin surface.
type Handlers struct {
	Queue     queueStore.Store
	Scheduler SyncRequester
	Online    func() bool
	LoadFeed  FeedLoader                         // nil disables GET /feed
	Dispatch  *orchestrators.DispatchActionDeps // nil disables POST /actions
}

// NewMux builds the admin router.
func NewMux(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/queue", h.handleQueueList)
	mux.HandleFunc("POST /admin/sync", h.handleSyncTrigger)
	mux.HandleFunc("GET /admin/health", h.handleHealth)
	if h.LoadFeed != nil {
		mux.HandleFunc("GET /feed", h.handleFeed)
	}
	if h.Dispatch != nil {
		mux.HandleFunc("POST /actions", h.handleDispatchAction)
	}
	return mux
}

func internalError(w http.ResponseWriter, err error) {
	slog.Error("admin_internal_error", "error", err.Error())
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// queueItemView is the wire shape of one pending item.
type queueItemView struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
	RetryCount    int             `json:"retryCount"`
	MaxRetries    int             `json:"maxRetries"`
	LastAttemptAt *time.Time      `json:"lastAttemptAt,omitempty"`
}

func toView(item action.Item) queueItemView {
	v := queueItemView{
		ID:         item.ID,
		Kind:       item.Kind,
		Payload:    item.Payload,
		EnqueuedAt: item.EnqueuedAt,
		RetryCount: item.RetryCount,
		MaxRetries: item.MaxRetries,
	}
	if !item.LastAttemptAt.IsZero() {
		at := item.LastAttemptAt
		v.LastAttemptAt = &at
	}
	return v
}

// handleQueueList returns the pending queue snapshot, oldest first.
// GET /admin/queue?kind=social-action&limit=50
func (h *Handlers) handleQueueList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	var items []action.Item
	var err error
	if kind := r.URL.Query().Get("kind"); kind != "" {
		items, err = h.Queue.ListByKind(ctx, kind)
	} else {
		items, err = h.Queue.ListPending(ctx)
	}
	if err != nil {
		internalError(w, err)
		return
	}
	if len(items) > limit {
		items = items[:limit]
	}

	views := make([]queueItemView, 0, len(items))
	for _, item := range items {
		views = append(views, toView(item))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleSyncTrigger schedules a manual sync pass. The pass runs in the
// background; 202 means scheduled, not completed.
// POST /admin/sync
func (h *Handlers) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	h.Scheduler.RequestSync("manual")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync requested"})
}

// handleHealth reports engine state for probes and operators.
// GET /admin/health
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	count, err := h.Queue.Count(ctx)
	if err != nil {
		internalError(w, err)
		return
	}

	online := true
	if h.Online != nil {
		online = h.Online()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"queueSize": count,
		"online":    online,
	})
}

// dispatchRequest is the wire shape of one submitted action.
type dispatchRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// dispatchResponse reports how the action was handled: delivered directly
// (200, data carries the server response) or made durable for later sync
// (202, queueId names the queued item).
type dispatchResponse struct {
	Success bool            `json:"success"`
	Queued  bool            `json:"queued"`
	QueueID string          `json:"queueId,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// handleDispatchAction submits an action: direct to the remote endpoint when
// online, durable queue otherwise.
// POST /actions
func (h *Handlers) handleDispatchAction(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := orchestrators.ExecuteDispatchAction(r.Context(), orchestrators.EnqueueActionInput{
		Kind:    req.Kind,
		Payload: req.Payload,
	}, *h.Dispatch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusOK
	if result.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, dispatchResponse{
		Success: result.Success,
		Queued:  result.Queued,
		QueueID: result.QueueID,
		Data:    result.Data,
	})
}

// feedView is the wire shape of one feed page.
type feedView struct {
	Posts     []feedPostView `json:"posts"`
	FromCache bool           `json:"fromCache"`
}

type feedPostView struct {
	ID       string          `json:"id"`
	Payload  json.RawMessage `json:"payload"`
	CachedAt time.Time       `json:"cachedAt"`
}

// handleFeed returns a feed page.
// GET /feed?limit=20&offset=0
func (h *Handlers) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if n, err := strconv.Atoi(offsetStr); err == nil && n >= 0 {
			offset = n
		}
	}

	posts, fromCache, err := h.LoadFeed(r.Context(), limit, offset)
	if err != nil {
		internalError(w, err)
		return
	}
	views := make([]feedPostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, feedPostView{ID: p.ID, Payload: p.Payload, CachedAt: p.CachedAt})
	}
	writeJSON(w, http.StatusOK, feedView{Posts: views, FromCache: fromCache})
}
