package feed

import (
	"encoding/json"
	"errors"
	"time"
)

// DefaultMaxItems is the cache bound when no explicit bound is configured.
const DefaultMaxItems = 100

// Domain errors.
var (
	ErrEmptyID      = errors.New("cached post id is required")
	ErrEmptyPayload = errors.New("cached post payload is required")
)

// CachedPost is one feed record held in the bounded read cache. The payload is
// the business record as fetched; the cache never interprets it. CachedAt
// orders eviction: the cache is write-once-read-many for feed pages, so the
// oldest write goes first rather than the least recently read.
type CachedPost struct {
	ID       string
	Payload  json.RawMessage
	CachedAt time.Time
}

// Validate checks that the CachedPost has valid data.
// PRE: CachedPost struct is populated
// POST: Returns nil if valid, error otherwise
func (p *CachedPost) Validate() error {
	if p.ID == "" {
		return ErrEmptyID
	}
	if len(p.Payload) == 0 {
		return ErrEmptyPayload
	}
	if p.CachedAt.IsZero() {
		return errors.New("cached_at must be set")
	}
	return nil
}
