package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltessier/courier/internal/domain/models"
)

type ConversationRepository struct {
	BaseRepository
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO conversations (
			id, type, name, avatar_url, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		conversation.ID,
		conversation.Type,
		nullString(conversation.Name),
		nullString(conversation.AvatarURL),
		conversation.CreatedBy,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	)

	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, type, name, avatar_url, created_by, created_at, updated_at
		FROM conversations
		WHERE id = $1`

	return r.scanConversation(r.conn(ctx).QueryRow(ctx, query, id))
}

// FindDirect looks up the direct conversation whose two participant rows
// are exactly the given pair, in either order. It takes a pair-scoped
// advisory lock first so concurrent creates for the same pair serialize
// within the enclosing transaction.
func (r *ConversationRepository) FindDirect(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if txFrom(ctx) != nil {
		if _, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, pairLockKey(userA, userB)); err != nil {
			return nil, err
		}
	}

	query := `
		SELECT c.id, c.type, c.name, c.avatar_url, c.created_by, c.created_at, c.updated_at
		FROM conversations c
		WHERE c.type = 'direct'
		  AND EXISTS (
			SELECT 1 FROM conversation_participants p
			WHERE p.conversation_id = c.id AND p.user_id = $1
		  )
		  AND EXISTS (
			SELECT 1 FROM conversation_participants p
			WHERE p.conversation_id = c.id AND p.user_id = $2
		  )
		LIMIT 1`

	conversation, err := r.scanConversation(r.conn(ctx).QueryRow(ctx, query, userA, userB))
	if checkNoRows(err) {
		return nil, nil
	}
	return conversation, err
}

func (r *ConversationRepository) Update(ctx context.Context, conversation *models.Conversation) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE conversations
		SET name = $2,
			avatar_url = $3,
			updated_at = $4
		WHERE id = $1`

	tag, err := r.conn(ctx).Exec(ctx, query,
		conversation.ID,
		nullString(conversation.Name),
		nullString(conversation.AvatarURL),
		conversation.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Touch bumps updated_at so the conversation surfaces at the top of
// list views after a new message.
func (r *ConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `UPDATE conversations SET updated_at = $2 WHERE id = $1`
	_, err := r.conn(ctx).Exec(ctx, query, id, at)
	return err
}

func (r *ConversationRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Conversation, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1 AND p.left_at IS NULL`
	if err := r.conn(ctx).QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
		SELECT c.id, c.type, c.name, c.avatar_url, c.created_by, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1 AND p.left_at IS NULL
		ORDER BY c.updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.conn(ctx).Query(ctx, listQuery, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		var c models.Conversation
		var name, avatarURL sql.NullString
		if err := rows.Scan(&c.ID, &c.Type, &name, &avatarURL, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		c.Name = getString(name)
		c.AvatarURL = getString(avatarURL)
		conversations = append(conversations, &c)
	}
	return conversations, total, rows.Err()
}

func (r *ConversationRepository) scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	var name, avatarURL sql.NullString

	err := row.Scan(
		&c.ID,
		&c.Type,
		&name,
		&avatarURL,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Name = getString(name)
	c.AvatarURL = getString(avatarURL)
	return &c, nil
}
