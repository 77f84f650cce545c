package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltessier/courier/internal/domain/models"
)

type MessageStatusRepository struct {
	BaseRepository
}

func NewMessageStatusRepository(pool *pgxpool.Pool) *MessageStatusRepository {
	return &MessageStatusRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

// CreateBatch inserts one sent row per recipient. unnest keeps it a
// single round trip regardless of group size.
func (r *MessageStatusRepository) CreateBatch(ctx context.Context, messageID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO message_status (message_id, user_id, state)
		SELECT $1, unnest($2::text[]), 'sent'
		ON CONFLICT (message_id, user_id) DO NOTHING`

	_, err := r.conn(ctx).Exec(ctx, query, messageID, userIDs)
	return err
}

func (r *MessageStatusRepository) Get(ctx context.Context, messageID, userID string) (*models.MessageStatus, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT message_id, user_id, state, updated_at
		FROM message_status
		WHERE message_id = $1 AND user_id = $2`

	var s models.MessageStatus
	err := r.conn(ctx).QueryRow(ctx, query, messageID, userID).Scan(
		&s.MessageID,
		&s.UserID,
		&s.State,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *MessageStatusRepository) ListByMessage(ctx context.Context, messageID string) ([]*models.MessageStatus, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT message_id, user_id, state, updated_at
		FROM message_status
		WHERE message_id = $1
		ORDER BY user_id`

	rows, err := r.conn(ctx).Query(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []*models.MessageStatus
	for rows.Next() {
		var s models.MessageStatus
		if err := rows.Scan(&s.MessageID, &s.UserID, &s.State, &s.UpdatedAt); err != nil {
			return nil, err
		}
		statuses = append(statuses, &s)
	}
	return statuses, rows.Err()
}

// MarkDelivered advances sent rows to delivered and returns the affected
// messages with their senders. The state guard keeps transitions monotonic
// and makes repeated acks no-ops.
func (r *MessageStatusRepository) MarkDelivered(ctx context.Context, messageIDs []string, userID string) ([]models.StatusUpdate, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE message_status ms
		SET state = 'delivered', updated_at = NOW()
		FROM messages m
		WHERE ms.message_id = m.id
		  AND ms.message_id = ANY($1)
		  AND ms.user_id = $2
		  AND ms.state = 'sent'
		RETURNING ms.message_id, m.sender_id, m.created_at`

	rows, err := r.conn(ctx).Query(ctx, query, messageIDs, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStatusUpdates(rows)
}

// MarkRead advances every non-read row for the user in the conversation
// created at or before upTo, returning the affected messages and senders.
func (r *MessageStatusRepository) MarkRead(ctx context.Context, conversationID, userID string, upTo time.Time) ([]models.StatusUpdate, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE message_status ms
		SET state = 'read', updated_at = NOW()
		FROM messages m
		WHERE ms.message_id = m.id
		  AND m.conversation_id = $1
		  AND ms.user_id = $2
		  AND m.created_at <= $3
		  AND ms.state <> 'read'
		RETURNING ms.message_id, m.sender_id, m.created_at`

	rows, err := r.conn(ctx).Query(ctx, query, conversationID, userID, upTo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStatusUpdates(rows)
}

// MarkReadByIDs advances specific rows to read for userID.
func (r *MessageStatusRepository) MarkReadByIDs(ctx context.Context, messageIDs []string, userID string) ([]models.StatusUpdate, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE message_status ms
		SET state = 'read', updated_at = NOW()
		FROM messages m
		WHERE ms.message_id = m.id
		  AND ms.message_id = ANY($1)
		  AND ms.user_id = $2
		  AND ms.state <> 'read'
		RETURNING ms.message_id, m.sender_id, m.created_at`

	rows, err := r.conn(ctx).Query(ctx, query, messageIDs, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectStatusUpdates(rows)
}

func collectStatusUpdates(rows pgx.Rows) ([]models.StatusUpdate, error) {
	var updates []models.StatusUpdate
	for rows.Next() {
		var u models.StatusUpdate
		if err := rows.Scan(&u.MessageID, &u.SenderID, &u.CreatedAt); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}
