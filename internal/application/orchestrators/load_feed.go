package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tabletalk/internal/adapters/remote"
	feedStore "tabletalk/internal/adapters/storage/feedcache"
	"tabletalk/internal/domain/feed"
)

// LoadFeedInput carries paging input for the orchestrator.
type LoadFeedInput struct {
	Limit  int
	Offset int
}

// LoadFeedDeps holds dependencies for LoadFeed.
type LoadFeedDeps struct {
	Client remote.Client
	Cache  feedStore.Store
	Online func() bool      // nil means assume online
	Now    func() time.Time // nil means time.Now
}

// LoadFeedResult is a page of feed posts and where it came from.
type LoadFeedResult struct {
	Posts     []feed.CachedPost
	FromCache bool
}

// ExecuteLoadFeed reads the feed network-first: a successful fetch refreshes
// the cache, any failure serves the cached page instead. The cache is
// read-through only; nothing written here ever syncs back.
// PRE: Limit is positive
// POST: Result is from the network or the cache, never a mix
func ExecuteLoadFeed(ctx context.Context, input LoadFeedInput, deps LoadFeedDeps) (LoadFeedResult, error) {
	if input.Limit <= 0 {
		input.Limit = feed.DefaultMaxItems
	}
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}

	if deps.Online == nil || deps.Online() {
		posts, err := deps.Client.FetchFeed(ctx, input.Limit, input.Offset)
		if err == nil {
			cached := make([]feed.CachedPost, 0, len(posts))
			for _, p := range posts {
				cached = append(cached, feed.CachedPost{
					ID:       p.ID,
					Payload:  p.Payload,
					CachedAt: now(),
				})
			}
			if err := deps.Cache.Put(ctx, cached); err != nil {
				// A full cache miss next time is the only cost; the
				// fetched page is still good.
				slog.Warn("feed_cache_fill_failed", "error", err.Error())
			}
			return LoadFeedResult{Posts: cached}, nil
		}
		slog.Warn("feed_fetch_failed", "error", err.Error())
	}

	posts, err := deps.Cache.Get(ctx, input.Limit, input.Offset)
	if err != nil {
		return LoadFeedResult{}, fmt.Errorf("read feed cache: %w", err)
	}
	return LoadFeedResult{Posts: posts, FromCache: true}, nil
}
