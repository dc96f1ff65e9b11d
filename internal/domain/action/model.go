package action

import (
	"encoding/json"
	"errors"
	"time"
)

// Kind constants identify the payload shape of a queued item.
const (
	KindOrder        = "order"
	KindProfile      = "profile"
	KindFeedback     = "feedback"
	KindSocialAction = "social-action"
)

// Social action types for kind "social-action".
const (
	TypeLike     = "like"
	TypeUnlike   = "unlike"
	TypeComment  = "comment"
	TypeFollow   = "follow"
	TypeUnfollow = "unfollow"
)

// DefaultMaxRetries is the retry budget given to items at enqueue time.
const DefaultMaxRetries = 3

// Domain errors.
var (
	ErrEmptyID           = errors.New("item id is required")
	ErrEmptyKind         = errors.New("item kind is required")
	ErrEmptyPayload      = errors.New("item payload is required")
	ErrUnknownActionType = errors.New("unknown social action type")
	ErrEmptySubject      = errors.New("subject id is required")
	ErrEmptyActor        = errors.New("actor id is required")
	ErrMissingTarget     = errors.New("target user id is required for follow actions")
	ErrMissingContent    = errors.New("comment content is required")
	ErrMaxRetries        = errors.New("max retry attempts reached")
	ErrQueueFull         = errors.New("sync queue is full")
)

// Item is a single durable record in the sync queue. The payload is opaque to
// the queue; retry bookkeeping lives on the item itself so the executor never
// has to understand payload shapes to enforce the retry budget.
type Item struct {
	ID            string
	Kind          string
	Payload       json.RawMessage
	EnqueuedAt    time.Time
	RetryCount    int
	MaxRetries    int
	LastAttemptAt time.Time // zero value means never attempted
}

// Validate checks that the Item has valid data.
// PRE: Item struct is populated
// POST: Returns nil if valid, error otherwise; MaxRetries defaulted if unset
func (i *Item) Validate() error {
	if i.ID == "" {
		return ErrEmptyID
	}
	if i.Kind == "" {
		return ErrEmptyKind
	}
	if len(i.Payload) == 0 {
		return ErrEmptyPayload
	}
	if i.EnqueuedAt.IsZero() {
		return errors.New("enqueued_at must be set")
	}
	if i.MaxRetries <= 0 {
		i.MaxRetries = DefaultMaxRetries
	}
	return nil
}

// CanRetry returns true if another attempt fits within the retry budget.
// PRE: RetryCount and MaxRetries are set
// POST: Returns true while RetryCount < MaxRetries
func (i *Item) CanRetry() bool {
	return i.RetryCount < i.MaxRetries
}

// MarkAttempt records one delivery attempt.
// PRE: CanRetry() is true
// POST: RetryCount incremented, LastAttemptAt set to now
func (i *Item) MarkAttempt(now time.Time) {
	i.RetryCount++
	i.LastAttemptAt = now
}

// NextRetryDelay calculates the delay before the next attempt is due.
// Uses exponential backoff: 2^retryCount * baseDelay, capped at maxDelay.
// PRE: RetryCount is set
// POST: Returns duration to wait after LastAttemptAt
func (i *Item) NextRetryDelay(baseDelay, maxDelay time.Duration) time.Duration {
	delay := baseDelay * (1 << i.RetryCount)
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// ReadyForAttempt reports whether the item's backoff window has elapsed.
// An item never attempted is always ready.
func (i *Item) ReadyForAttempt(now time.Time, baseDelay, maxDelay time.Duration) bool {
	if i.LastAttemptAt.IsZero() {
		return true
	}
	return !now.Before(i.LastAttemptAt.Add(i.NextRetryDelay(baseDelay, maxDelay)))
}

// SocialAction is the payload shape for kind "social-action": one mutating
// social intent recorded on behalf of a user. Field names match the remote
// endpoint's wire contract.
type SocialAction struct {
	ActionType   string `json:"actionType"`
	SubjectID    string `json:"subjectId"`
	ActorID      string `json:"actorId"`
	TargetUserID string `json:"targetUserId,omitempty"`
	Content      string `json:"content,omitempty"`
	ParentID     string `json:"parentId,omitempty"`
}

// Validate checks the action against its type's requirements.
// PRE: SocialAction struct is populated
// POST: Returns nil if valid, a domain error otherwise
func (a *SocialAction) Validate() error {
	switch a.ActionType {
	case TypeLike, TypeUnlike, TypeComment, TypeFollow, TypeUnfollow:
	default:
		return ErrUnknownActionType
	}
	if a.ActorID == "" {
		return ErrEmptyActor
	}
	switch a.ActionType {
	case TypeFollow, TypeUnfollow:
		if a.TargetUserID == "" {
			return ErrMissingTarget
		}
	case TypeComment:
		if a.SubjectID == "" {
			return ErrEmptySubject
		}
		if a.Content == "" {
			return ErrMissingContent
		}
	default:
		if a.SubjectID == "" {
			return ErrEmptySubject
		}
	}
	return nil
}

// Encode serializes the action into an opaque queue payload.
// PRE: action is valid
// POST: Returns the JSON payload for Item.Payload
func (a *SocialAction) Encode() (json.RawMessage, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeSocialAction parses a queue payload back into a SocialAction.
// PRE: payload came from a kind "social-action" item
// POST: Returns the decoded action or an error for malformed payloads
func DecodeSocialAction(payload json.RawMessage) (SocialAction, error) {
	var a SocialAction
	if err := json.Unmarshal(payload, &a); err != nil {
		return SocialAction{}, err
	}
	return a, nil
}
