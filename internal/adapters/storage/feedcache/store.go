package feedcache

import (
	"context"

	domain "tabletalk/internal/domain/feed"
)

// Store defines the interface for the bounded feed read cache.
type Store interface {
	// Put upserts one or more cached posts and then enforces the size bound.
	// Eviction removes the oldest entries by cached_at first (FIFO, not LRU).
	// PRE: entries have been validated
	// POST: Entries are persisted; store size never exceeds the configured bound
	Put(ctx context.Context, entries []domain.CachedPost) error

	// Get returns cached posts ordered newest-first.
	// PRE: limit > 0, offset >= 0
	// POST: Returns up to limit entries
	Get(ctx context.Context, limit, offset int) ([]domain.CachedPost, error)

	// Count returns the number of cached posts.
	Count(ctx context.Context) (int, error)
}
