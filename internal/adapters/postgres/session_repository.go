package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltessier/courier/internal/domain/models"
)

type SessionRepository struct {
	BaseRepository
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO sessions (
			id, user_id, refresh_token, expires_at, last_used_at, is_active, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		session.ID,
		session.UserID,
		session.RefreshToken,
		session.ExpiresAt,
		session.LastUsedAt,
		session.Active,
		session.CreatedAt,
	)

	return err
}

func (r *SessionRepository) GetByRefreshToken(ctx context.Context, token string) (*models.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, refresh_token, expires_at, last_used_at, is_active, created_at
		FROM sessions
		WHERE refresh_token = $1`

	var session models.Session
	err := r.conn(ctx).QueryRow(ctx, query, token).Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshToken,
		&session.ExpiresAt,
		&session.LastUsedAt,
		&session.Active,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Rotate swaps the refresh token in place so the old token stops working
// the moment the new one is issued.
func (r *SessionRepository) Rotate(ctx context.Context, id, newToken string, expiresAt time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE sessions
		SET refresh_token = $2,
			expires_at = $3,
			last_used_at = NOW()
		WHERE id = $1 AND is_active`

	_, err := r.conn(ctx).Exec(ctx, query, id, newToken, expiresAt)
	return err
}

func (r *SessionRepository) Deactivate(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `UPDATE sessions SET is_active = FALSE WHERE id = $1`
	_, err := r.conn(ctx).Exec(ctx, query, id)
	return err
}

func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `UPDATE sessions SET is_active = FALSE WHERE user_id = $1 AND is_active`
	_, err := r.conn(ctx).Exec(ctx, query, userID)
	return err
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM sessions WHERE expires_at < $1`
	tag, err := r.conn(ctx).Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
