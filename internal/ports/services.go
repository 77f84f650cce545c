package ports

import (
	"context"
	"time"

	"github.com/ltessier/courier/internal/domain/models"
)

// TransactionManager runs fn inside a database transaction. The context
// passed to fn carries the transaction; repositories pick it up
// automatically.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IDGenerator mints prefixed identifiers (usr_, cv_, msg_, ses_, ct_).
type IDGenerator interface {
	UserID() string
	ConversationID() string
	MessageID() string
	SessionID() string
	ContactID() string
}

// MessageCache is the cache-aside layer in front of the message store.
// Implementations degrade gracefully: read misses and write failures are
// reported as errors but callers treat the store as authoritative.
type MessageCache interface {
	// GetRecent returns the cached first page for a conversation along
	// with whether more history exists past it, or (nil, false, nil) on
	// a miss. Any message write invalidates the page; it is never
	// patched in place.
	GetRecent(ctx context.Context, conversationID string) ([]*models.Message, bool, error)
	SetRecent(ctx context.Context, conversationID string, messages []*models.Message, hasMore bool) error
	InvalidateRecent(ctx context.Context, conversationID string) error

	// IncrUnread bumps the per-conversation counter and the aggregate.
	IncrUnread(ctx context.Context, userID, conversationID string) error
	// ResetUnread zeroes the per-conversation counter and decrements the
	// aggregate by the amount that was pending, clamped at zero.
	ResetUnread(ctx context.Context, userID, conversationID string) error
	// GetUnread reads the counters for the given conversations. Counters
	// absent from the cache come back in missing for lazy repair.
	GetUnread(ctx context.Context, userID string, conversationIDs []string) (total int64, byConversation map[string]int64, missing []string, err error)
	// SetUnread repairs a counter from the authoritative store.
	SetUnread(ctx context.Context, userID, conversationID string, count int64) error

	SetDeliveryStatus(ctx context.Context, messageID, userID string, state models.DeliveryState) error
	GetDeliveryStatus(ctx context.Context, messageID string) (map[string]models.DeliveryState, error)
}

// PresenceStore tracks live connection state in the shared cache so all
// instances observe the same presence.
type PresenceStore interface {
	// AddConnection increments the user's connection count and returns the
	// new count.
	AddConnection(ctx context.Context, userID string) (int, error)
	// RemoveConnection decrements and clamps at zero, returning the new count.
	RemoveConnection(ctx context.Context, userID string) (int, error)
	SetStatus(ctx context.Context, userID string, status models.UserStatus) error
	Get(ctx context.Context, userID string) (*models.Presence, error)
	GetMany(ctx context.Context, userIDs []string) (map[string]*models.Presence, error)
	Heartbeat(ctx context.Context, userID string) error
	// Stale returns users whose heartbeat is older than cutoff but who
	// still show a nonzero connection count.
	Stale(ctx context.Context, cutoff time.Time) ([]string, error)
	Clear(ctx context.Context, userID string) error
}

// Fabric is the cross-instance pub/sub plane. Rooms are named channels;
// every instance receives every publication and fans out to its local
// subscribers.
type Fabric interface {
	Publish(ctx context.Context, room string, payload []byte) error
	// Run consumes the pattern subscription until ctx is cancelled,
	// invoking handle for every publication.
	Run(ctx context.Context, handle func(room string, payload []byte)) error
	Close() error
}

// EventBus publishes typed realtime events to a room. The realtime
// broker implements it over the fabric.
type EventBus interface {
	Publish(ctx context.Context, room, eventType string, payload any) error
}

// RateLimiter enforces per-user send and modify budgets.
type RateLimiter interface {
	// AllowSend checks the burst (5/1s) and sustained (30/60s) budgets.
	// A zero retryAfter means the request is admitted.
	AllowSend(ctx context.Context, userID string) (retryAfter time.Duration, err error)
	// AllowModify checks the shared edit/delete budget (30/60s).
	AllowModify(ctx context.Context, userID string) (retryAfter time.Duration, err error)
}
