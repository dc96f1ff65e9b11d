package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"tabletalk/internal/adapters/storage"
	domain "tabletalk/internal/domain/action"
)

const (
	dateLayout = "2006-01-02T15:04:05.999999999Z07:00"
)

// SQLiteStore implements the queue Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new sync queue store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a queued item by its ID.
// PRE: id is non-empty
// POST: Returns the item or sql.ErrNoRows if absent
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, payload, enqueued_at, retry_count, max_retries, last_attempt_at
		 FROM sync_queue WHERE id = ?`, id)
	return scanItem(row.Scan)
}

// Save persists a queued item.
// PRE: item has been validated
// POST: Item is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, item domain.Item) error {
	lastAttemptAt := ""
	if !item.LastAttemptAt.IsZero() {
		lastAttemptAt = item.LastAttemptAt.UTC().Format(dateLayout)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_queue (id, kind, payload, enqueued_at, retry_count, max_retries, last_attempt_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   kind=excluded.kind, payload=excluded.payload,
		   retry_count=excluded.retry_count, max_retries=excluded.max_retries,
		   last_attempt_at=excluded.last_attempt_at`,
		item.ID, item.Kind, string(item.Payload),
		item.EnqueuedAt.UTC().Format(dateLayout),
		item.RetryCount, item.MaxRetries, lastAttemptAt)
	return err
}

// ListPending returns all queued items ordered by enqueued_at ascending.
// PRE: none
// POST: Returns items oldest first
func (s *SQLiteStore) ListPending(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, payload, enqueued_at, retry_count, max_retries, last_attempt_at
		 FROM sync_queue ORDER BY enqueued_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// ListByKind returns queued items of one kind ordered by enqueued_at ascending.
// PRE: kind is non-empty
// POST: Returns matching items oldest first
func (s *SQLiteStore) ListByKind(ctx context.Context, kind string) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, payload, enqueued_at, retry_count, max_retries, last_attempt_at
		 FROM sync_queue WHERE kind = ? ORDER BY enqueued_at ASC, id ASC`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// Delete removes an item. Idempotent.
// PRE: id is non-empty
// POST: Item is absent from the store
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

// Count returns the number of queued items.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n)
	return n, err
}

// scanItem scans a single row into an Item.
func scanItem(scan func(dest ...any) error) (domain.Item, error) {
	var item domain.Item
	var payload, enqueuedAt, lastAttemptAt string
	err := scan(&item.ID, &item.Kind, &payload, &enqueuedAt,
		&item.RetryCount, &item.MaxRetries, &lastAttemptAt)
	if err != nil {
		return domain.Item{}, err
	}
	item.Payload = json.RawMessage(payload)
	item.EnqueuedAt, _ = time.Parse(dateLayout, enqueuedAt)
	if lastAttemptAt != "" {
		item.LastAttemptAt, _ = time.Parse(dateLayout, lastAttemptAt)
	}
	return item, nil
}

// scanItems scans multiple rows into a slice of Items.
func scanItems(rows *sql.Rows) ([]domain.Item, error) {
	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
