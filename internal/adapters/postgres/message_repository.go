package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltessier/courier/internal/domain/models"
	"github.com/ltessier/courier/internal/ports"
)

type MessageRepository struct {
	BaseRepository
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

const messageColumns = `id, conversation_id, sender_id, content, reply_to_id,
	       created_at, updated_at, deleted_at`

func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO messages (
			id, conversation_id, sender_id, content, reply_to_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		message.ID,
		message.ConversationID,
		message.SenderID,
		message.Content,
		nullString(message.ReplyToID),
		message.CreatedAt,
		message.UpdatedAt,
	)

	return err
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE id = $1 AND deleted_at IS NULL`

	return r.scanMessage(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *MessageRepository) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE messages
		SET content = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.conn(ctx).Exec(ctx, query, id, content, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *MessageRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE messages
		SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.conn(ctx).Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListRecent pages newest-first. The cursor is the (created_at, id) of the
// last message on the previous page; a zero time starts from the top. One
// extra row is fetched to compute HasMore.
func (r *MessageRepository) ListRecent(ctx context.Context, conversationID string, before time.Time, beforeID string, limit int, includeDeleted bool) (*ports.MessagePage, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1 AND ($2 OR deleted_at IS NULL)
		  AND ($3::timestamptz IS NULL OR (created_at, id) < ($3, $4))
		ORDER BY created_at DESC, id DESC
		LIMIT $5`

	var cursor sql.NullTime
	if !before.IsZero() {
		cursor = sql.NullTime{Time: before, Valid: true}
	}

	rows, err := r.conn(ctx).Query(ctx, query, conversationID, includeDeleted, cursor, beforeID, limit+1)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessageFromRows(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := &ports.MessagePage{Messages: messages}
	if len(messages) > limit {
		page.Messages = messages[:limit]
		page.HasMore = true
	}
	return page, nil
}

// Search runs a web-style full-text query over the messages of every
// conversation the user is an active participant of. A non-empty
// conversationID narrows the scope to that single conversation; the
// participant join still applies, so outsiders get nothing back.
func (r *MessageRepository) Search(ctx context.Context, userID, query, conversationID string, limit, offset int) ([]*models.Message, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversation_participants p
		  ON p.conversation_id = m.conversation_id
		 AND p.user_id = $1 AND p.left_at IS NULL
		WHERE m.deleted_at IS NULL
		  AND ($3 = '' OR m.conversation_id = $3)
		  AND m.search @@ websearch_to_tsquery('english', $2)`
	if err := r.conn(ctx).QueryRow(ctx, countQuery, userID, query, conversationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.reply_to_id,
		       m.created_at, m.updated_at, m.deleted_at
		FROM messages m
		JOIN conversation_participants p
		  ON p.conversation_id = m.conversation_id
		 AND p.user_id = $1 AND p.left_at IS NULL
		WHERE m.deleted_at IS NULL
		  AND ($3 = '' OR m.conversation_id = $3)
		  AND m.search @@ websearch_to_tsquery('english', $2)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $4 OFFSET $5`

	rows, err := r.conn(ctx).Query(ctx, listQuery, userID, query, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessageFromRows(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}
	return messages, total, rows.Err()
}

func (r *MessageRepository) CountSince(ctx context.Context, conversationID, excludeSenderID string, since time.Time) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND deleted_at IS NULL AND created_at > $3`

	var count int
	err := r.conn(ctx).QueryRow(ctx, query, conversationID, excludeSenderID, since).Scan(&count)
	return count, err
}

func (r *MessageRepository) scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	var replyTo sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.Content,
		&replyTo,
		&m.CreatedAt,
		&m.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	m.ReplyToID = getString(replyTo)
	m.DeletedAt = getTimePtr(deletedAt)
	return &m, nil
}

func scanMessageFromRows(rows pgx.Rows) (*models.Message, error) {
	var m models.Message
	var replyTo sql.NullString
	var deletedAt sql.NullTime

	err := rows.Scan(
		&m.ID,
		&m.ConversationID,
		&m.SenderID,
		&m.Content,
		&replyTo,
		&m.CreatedAt,
		&m.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	m.ReplyToID = getString(replyTo)
	m.DeletedAt = getTimePtr(deletedAt)
	return &m, nil
}
