package queue

import (
	"context"

	domain "tabletalk/internal/domain/action"
)

// Store defines the interface for durable sync queue persistence.
type Store interface {
	// GetByID retrieves a queued item by its ID.
	// PRE: id is non-empty
	// POST: Returns the item or an error if not found
	GetByID(ctx context.Context, id string) (domain.Item, error)

	// Save persists a queued item (insert or update of retry bookkeeping).
	// PRE: item has been validated
	// POST: Item is persisted
	Save(ctx context.Context, item domain.Item) error

	// ListPending returns all queued items ordered by enqueued_at ascending.
	// The ordering is the basis of the FIFO replay guarantee; the result is a
	// finite snapshot, not a live stream.
	// PRE: none
	// POST: Returns items oldest first
	ListPending(ctx context.Context) ([]domain.Item, error)

	// ListByKind returns queued items of one kind ordered by enqueued_at ascending.
	// PRE: kind is non-empty
	// POST: Returns matching items oldest first
	ListByKind(ctx context.Context, kind string) ([]domain.Item, error)

	// Delete removes an item. Idempotent: deleting an absent id is not an error.
	// PRE: id is non-empty
	// POST: Item is absent from the store
	Delete(ctx context.Context, id string) error

	// Count returns the number of queued items.
	Count(ctx context.Context) (int, error)
}
