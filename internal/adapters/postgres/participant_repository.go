package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltessier/courier/internal/domain/models"
)

type ParticipantRepository struct {
	BaseRepository
}

func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

const participantColumns = `conversation_id, user_id, is_admin, joined_at, left_at,
	       last_read_at, is_muted, is_archived`

func (r *ParticipantRepository) Add(ctx context.Context, participant *models.Participant) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO conversation_participants (
			conversation_id, user_id, is_admin, joined_at
		) VALUES (
			$1, $2, $3, $4
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		participant.ConversationID,
		participant.UserID,
		participant.IsAdmin,
		participant.JoinedAt,
	)

	return err
}

// Rejoin reactivates a soft-removed membership, resetting the admin flag.
func (r *ParticipantRepository) Rejoin(ctx context.Context, conversationID, userID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE conversation_participants
		SET left_at = NULL, is_admin = FALSE
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NOT NULL`

	tag, err := r.conn(ctx).Exec(ctx, query, conversationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ParticipantRepository) Get(ctx context.Context, conversationID, userID string) (*models.Participant, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + participantColumns + `
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2`

	return r.scanParticipant(r.conn(ctx).QueryRow(ctx, query, conversationID, userID))
}

func (r *ParticipantRepository) GetActive(ctx context.Context, conversationID, userID string) (*models.Participant, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + participantColumns + `
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`

	return r.scanParticipant(r.conn(ctx).QueryRow(ctx, query, conversationID, userID))
}

func (r *ParticipantRepository) ListActive(ctx context.Context, conversationID string) ([]*models.Participant, error) {
	return r.listActive(ctx, conversationID, false)
}

func (r *ParticipantRepository) ListActiveForUpdate(ctx context.Context, conversationID string) ([]*models.Participant, error) {
	return r.listActive(ctx, conversationID, true)
}

func (r *ParticipantRepository) listActive(ctx context.Context, conversationID string, forUpdate bool) ([]*models.Participant, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + participantColumns + `
		FROM conversation_participants
		WHERE conversation_id = $1 AND left_at IS NULL
		ORDER BY joined_at, user_id`
	if forUpdate {
		query += `
		FOR UPDATE`
	}

	rows, err := r.conn(ctx).Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p, err := scanParticipantFromRows(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *ParticipantRepository) Remove(ctx context.Context, conversationID, userID string, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE conversation_participants
		SET left_at = $3
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`

	tag, err := r.conn(ctx).Exec(ctx, query, conversationID, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ParticipantRepository) SetAdmin(ctx context.Context, conversationID, userID string, isAdmin bool) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE conversation_participants
		SET is_admin = $3
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`

	tag, err := r.conn(ctx).Exec(ctx, query, conversationID, userID, isAdmin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ParticipantRepository) SetLastRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE conversation_participants
		SET last_read_at = GREATEST(COALESCE(last_read_at, 'epoch'::timestamptz), $3)
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`

	_, err := r.conn(ctx).Exec(ctx, query, conversationID, userID, at)
	return err
}

func (r *ParticipantRepository) UpdateSettings(ctx context.Context, conversationID, userID string, isMuted, isArchived *bool) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE conversation_participants
		SET is_muted = COALESCE($3, is_muted),
			is_archived = COALESCE($4, is_archived)
		WHERE conversation_id = $1 AND user_id = $2 AND left_at IS NULL`

	tag, err := r.conn(ctx).Exec(ctx, query, conversationID, userID, isMuted, isArchived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ParticipantRepository) CountActive(ctx context.Context, conversationID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM conversation_participants
		WHERE conversation_id = $1 AND left_at IS NULL`

	var count int
	err := r.conn(ctx).QueryRow(ctx, query, conversationID).Scan(&count)
	return count, err
}

func (r *ParticipantRepository) scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	var leftAt, lastReadAt sql.NullTime

	err := row.Scan(
		&p.ConversationID,
		&p.UserID,
		&p.IsAdmin,
		&p.JoinedAt,
		&leftAt,
		&lastReadAt,
		&p.IsMuted,
		&p.IsArchived,
	)
	if err != nil {
		return nil, err
	}

	p.LeftAt = getTimePtr(leftAt)
	p.LastReadAt = getTimePtr(lastReadAt)
	return &p, nil
}

func scanParticipantFromRows(rows pgx.Rows) (*models.Participant, error) {
	var p models.Participant
	var leftAt, lastReadAt sql.NullTime

	err := rows.Scan(
		&p.ConversationID,
		&p.UserID,
		&p.IsAdmin,
		&p.JoinedAt,
		&leftAt,
		&lastReadAt,
		&p.IsMuted,
		&p.IsArchived,
	)
	if err != nil {
		return nil, err
	}

	p.LeftAt = getTimePtr(leftAt)
	p.LastReadAt = getTimePtr(lastReadAt)
	return &p, nil
}
