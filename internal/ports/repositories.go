package ports

import (
	"context"
	"time"

	"github.com/ltessier/courier/internal/domain/models"
)

// UserRepository defines operations for user persistence
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus, lastSeen *time.Time) error
	// Search matches username or display name. A non-empty
	// excludeContactsOf filters out that user's existing contacts.
	Search(ctx context.Context, query, excludeContactsOf string, limit, offset int) ([]*models.User, int, error)
}

// SessionRepository defines operations for refresh-token sessions
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByRefreshToken(ctx context.Context, token string) (*models.Session, error)
	Rotate(ctx context.Context, id, newToken string, expiresAt time.Time) error
	Deactivate(ctx context.Context, id string) error
	DeactivateAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ConversationRepository defines operations for conversation persistence
type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	// FindDirect returns the existing direct conversation between the two
	// users regardless of argument order, or nil when none exists.
	FindDirect(ctx context.Context, userA, userB string) (*models.Conversation, error)
	Update(ctx context.Context, conversation *models.Conversation) error
	Touch(ctx context.Context, id string, at time.Time) error
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Conversation, int, error)
}

// ParticipantRepository defines operations for conversation membership
type ParticipantRepository interface {
	Add(ctx context.Context, participant *models.Participant) error
	// Rejoin clears left_at on a previously removed participant, keeping
	// the original joined_at.
	Rejoin(ctx context.Context, conversationID, userID string) error
	Get(ctx context.Context, conversationID, userID string) (*models.Participant, error)
	// GetActive returns the participant only when left_at is null.
	GetActive(ctx context.Context, conversationID, userID string) (*models.Participant, error)
	ListActive(ctx context.Context, conversationID string) ([]*models.Participant, error)
	// ListActiveForUpdate locks the active membership rows for the rest
	// of the enclosing transaction.
	ListActiveForUpdate(ctx context.Context, conversationID string) ([]*models.Participant, error)
	Remove(ctx context.Context, conversationID, userID string, at time.Time) error
	SetAdmin(ctx context.Context, conversationID, userID string, isAdmin bool) error
	SetLastRead(ctx context.Context, conversationID, userID string, at time.Time) error
	UpdateSettings(ctx context.Context, conversationID, userID string, isMuted, isArchived *bool) error
	CountActive(ctx context.Context, conversationID string) (int, error)
}

// MessagePage is one keyset page of messages, newest first.
type MessagePage struct {
	Messages []*models.Message
	HasMore  bool
}

// MessageRepository defines operations for message persistence
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	UpdateContent(ctx context.Context, id, content string, at time.Time) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	// ListRecent pages newest-first with a (created_at, id) keyset cursor;
	// a zero cursor time means "from the top". Soft-deleted messages are
	// skipped unless includeDeleted is set.
	ListRecent(ctx context.Context, conversationID string, before time.Time, beforeID string, limit int, includeDeleted bool) (*MessagePage, error)
	// Search runs a full-text query across the user's conversations, or
	// within one of them when conversationID is non-empty.
	Search(ctx context.Context, userID, query, conversationID string, limit, offset int) ([]*models.Message, int, error)
	// CountSince counts live messages created after since, excluding the
	// given sender's own messages. Unread repair must never count what the
	// reader sent.
	CountSince(ctx context.Context, conversationID, excludeSenderID string, since time.Time) (int, error)
}

// MessageStatusRepository defines operations for per-recipient delivery state
type MessageStatusRepository interface {
	// CreateBatch inserts one sent row per recipient in a single statement.
	CreateBatch(ctx context.Context, messageID string, userIDs []string) error
	Get(ctx context.Context, messageID, userID string) (*models.MessageStatus, error)
	ListByMessage(ctx context.Context, messageID string) ([]*models.MessageStatus, error)
	// MarkDelivered advances sent rows for userID and returns the affected
	// messages paired with their senders. Rows already past sent are untouched.
	MarkDelivered(ctx context.Context, messageIDs []string, userID string) ([]models.StatusUpdate, error)
	// MarkRead advances every row for userID in the conversation created at
	// or before upTo, returning the affected messages and their senders.
	MarkRead(ctx context.Context, conversationID, userID string, upTo time.Time) ([]models.StatusUpdate, error)
	// MarkReadByIDs advances the given messages to read for userID.
	MarkReadByIDs(ctx context.Context, messageIDs []string, userID string) ([]models.StatusUpdate, error)
}

// ContactRepository defines operations for the contact list
type ContactRepository interface {
	Add(ctx context.Context, contact *models.Contact) error
	Get(ctx context.Context, ownerID, contactID string) (*models.Contact, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Contact, int, error)
	Update(ctx context.Context, contact *models.Contact) error
	Remove(ctx context.Context, ownerID, contactID string) error
	// IsBlockedEither reports whether either direction of the pair carries
	// a block.
	IsBlockedEither(ctx context.Context, userA, userB string) (bool, error)
	// ListMutualContactIDs returns users who have userID in their contacts
	// and vice versa, with neither direction blocked.
	ListMutualContactIDs(ctx context.Context, userID string) ([]string, error)
}
