package feedcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tabletalk/internal/adapters/storage"
	domain "tabletalk/internal/domain/feed"
)

const (
	dateLayout = "2006-01-02T15:04:05.999999999Z07:00"
)

// SQLiteStore implements the feed cache Store interface using SQLite.
type SQLiteStore struct {
	db       storage.SQLDB
	maxItems int
}

// NewSQLiteStore creates a new feed cache store. maxItems <= 0 selects the
// default bound.
func NewSQLiteStore(db storage.SQLDB, maxItems int) *SQLiteStore {
	if maxItems <= 0 {
		maxItems = domain.DefaultMaxItems
	}
	return &SQLiteStore{db: db, maxItems: maxItems}
}

// Put upserts entries and evicts down to the bound in a single transaction, so
// a concurrent reader never observes the cache above its bound with the new
// entries already visible.
// PRE: entries have been validated
// POST: Entries are persisted; size <= maxItems with the oldest evicted first
func (s *SQLiteStore) Put(ctx context.Context, entries []domain.CachedPost) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feed cache put: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO feed_cache (id, payload, cached_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   payload=excluded.payload, cached_at=excluded.cached_at`,
			e.ID, string(e.Payload), e.CachedAt.UTC().Format(dateLayout)); err != nil {
			return fmt.Errorf("upsert cached post %s: %w", e.ID, err)
		}
	}

	// Evict oldest-by-cached_at beyond the bound.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM feed_cache WHERE id IN (
			SELECT id FROM feed_cache ORDER BY cached_at DESC, id DESC LIMIT -1 OFFSET ?
		)`, s.maxItems); err != nil {
		return fmt.Errorf("evict feed cache: %w", err)
	}

	return tx.Commit()
}

// Get returns cached posts ordered newest-first.
// PRE: limit > 0, offset >= 0
// POST: Returns up to limit entries
func (s *SQLiteStore) Get(ctx context.Context, limit, offset int) ([]domain.CachedPost, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, cached_at FROM feed_cache
		 ORDER BY cached_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPosts(rows)
}

// Count returns the number of cached posts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feed_cache`).Scan(&n)
	return n, err
}

// scanPosts scans rows into CachedPosts.
func scanPosts(rows *sql.Rows) ([]domain.CachedPost, error) {
	var posts []domain.CachedPost
	for rows.Next() {
		var p domain.CachedPost
		var payload, cachedAt string
		if err := rows.Scan(&p.ID, &payload, &cachedAt); err != nil {
			return nil, err
		}
		p.Payload = json.RawMessage(payload)
		p.CachedAt, _ = time.Parse(dateLayout, cachedAt)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
