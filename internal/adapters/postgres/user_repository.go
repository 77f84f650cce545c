package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltessier/courier/internal/domain/models"
)

type UserRepository struct {
	BaseRepository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

const userColumns = `id, username, email, password_hash, display_name, bio, avatar_url,
	       status, last_seen_at, hide_read_status, is_active, created_at`

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO users (
			id, username, email, password_hash, display_name, bio, avatar_url,
			status, last_seen_at, hide_read_status, is_active, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err := r.conn(ctx).Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.Bio,
		user.AvatarURL,
		user.Status,
		nullTime(user.LastSeenAt),
		user.HideReadStatus,
		user.Active,
		user.CreatedAt,
	)

	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active`
	return r.scanUser(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 AND is_active`
	return r.scanUser(r.conn(ctx).QueryRow(ctx, query, username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active`
	return r.scanUser(r.conn(ctx).QueryRow(ctx, query, email))
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE users
		SET display_name = $2,
			bio = $3,
			avatar_url = $4,
			hide_read_status = $5
		WHERE id = $1 AND is_active`

	tag, err := r.conn(ctx).Exec(ctx, query,
		user.ID,
		user.DisplayName,
		user.Bio,
		user.AvatarURL,
		user.HideReadStatus,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus, lastSeen *time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE users
		SET status = $2,
			last_seen_at = COALESCE($3, last_seen_at)
		WHERE id = $1 AND is_active`

	_, err := r.conn(ctx).Exec(ctx, query, id, status, nullTime(lastSeen))
	return err
}

// Search matches username and display name by case-insensitive substring.
// excludeContactsOf, when non-empty, drops users already on that user's
// contact list ($2 is matched against itself when no filter applies).
func (r *UserRepository) Search(ctx context.Context, query, excludeContactsOf string, limit, offset int) ([]*models.User, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	pattern := "%" + query + "%"

	where := `
		WHERE is_active AND (username ILIKE $1 OR display_name ILIKE $1)
		  AND ($2 = '' OR NOT EXISTS (
			SELECT 1 FROM contacts
			WHERE owner_id = $2 AND contact_id = users.id
		  ))`

	var total int
	countQuery := `SELECT COUNT(*) FROM users` + where
	if err := r.conn(ctx).QueryRow(ctx, countQuery, pattern, excludeContactsOf).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
		SELECT ` + userColumns + `
		FROM users` + where + `
		ORDER BY username
		LIMIT $3 OFFSET $4`

	rows, err := r.conn(ctx).Query(ctx, listQuery, pattern, excludeContactsOf, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUserFromRows(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (r *UserRepository) scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var lastSeen sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Bio,
		&user.AvatarURL,
		&user.Status,
		&lastSeen,
		&user.HideReadStatus,
		&user.Active,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.LastSeenAt = getTimePtr(lastSeen)
	return &user, nil
}

func scanUserFromRows(rows pgx.Rows) (*models.User, error) {
	var user models.User
	var lastSeen sql.NullTime

	err := rows.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Bio,
		&user.AvatarURL,
		&user.Status,
		&lastSeen,
		&user.HideReadStatus,
		&user.Active,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.LastSeenAt = getTimePtr(lastSeen)
	return &user, nil
}
