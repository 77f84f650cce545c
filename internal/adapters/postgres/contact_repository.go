package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltessier/courier/internal/domain/models"
)

type ContactRepository struct {
	BaseRepository
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *ContactRepository) Add(ctx context.Context, contact *models.Contact) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO contacts (owner_id, contact_id, nickname, is_blocked, is_favorite, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, contact_id) DO NOTHING`

	_, err := r.conn(ctx).Exec(ctx, query,
		contact.OwnerID,
		contact.ContactID,
		contact.Nickname,
		contact.IsBlocked,
		contact.IsFavorite,
		contact.AddedAt,
	)

	return err
}

func (r *ContactRepository) Get(ctx context.Context, ownerID, contactID string) (*models.Contact, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT owner_id, contact_id, nickname, is_blocked, is_favorite, added_at
		FROM contacts
		WHERE owner_id = $1 AND contact_id = $2`

	var c models.Contact
	err := r.conn(ctx).QueryRow(ctx, query, ownerID, contactID).Scan(
		&c.OwnerID,
		&c.ContactID,
		&c.Nickname,
		&c.IsBlocked,
		&c.IsFavorite,
		&c.AddedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Contact, int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var total int
	countQuery := `SELECT COUNT(*) FROM contacts WHERE owner_id = $1`
	if err := r.conn(ctx).QueryRow(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `
		SELECT owner_id, contact_id, nickname, is_blocked, is_favorite, added_at
		FROM contacts
		WHERE owner_id = $1
		ORDER BY is_favorite DESC, added_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.conn(ctx).Query(ctx, listQuery, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.OwnerID, &c.ContactID, &c.Nickname, &c.IsBlocked, &c.IsFavorite, &c.AddedAt); err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, &c)
	}
	return contacts, total, rows.Err()
}

func (r *ContactRepository) Update(ctx context.Context, contact *models.Contact) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE contacts
		SET nickname = $3,
			is_blocked = $4,
			is_favorite = $5
		WHERE owner_id = $1 AND contact_id = $2`

	tag, err := r.conn(ctx).Exec(ctx, query,
		contact.OwnerID,
		contact.ContactID,
		contact.Nickname,
		contact.IsBlocked,
		contact.IsFavorite,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ContactRepository) Remove(ctx context.Context, ownerID, contactID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM contacts WHERE owner_id = $1 AND contact_id = $2`
	tag, err := r.conn(ctx).Exec(ctx, query, ownerID, contactID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IsBlockedEither reports whether either user blocks the other.
func (r *ContactRepository) IsBlockedEither(ctx context.Context, userA, userB string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM contacts
			WHERE is_blocked
			  AND ((owner_id = $1 AND contact_id = $2) OR (owner_id = $2 AND contact_id = $1))
		)`

	var blocked bool
	err := r.conn(ctx).QueryRow(ctx, query, userA, userB).Scan(&blocked)
	return blocked, err
}

// ListMutualContactIDs returns the users who share an unblocked mutual
// contact relationship with userID.
func (r *ContactRepository) ListMutualContactIDs(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT mine.contact_id
		FROM contacts mine
		JOIN contacts theirs
		  ON theirs.owner_id = mine.contact_id
		 AND theirs.contact_id = mine.owner_id
		WHERE mine.owner_id = $1
		  AND NOT mine.is_blocked
		  AND NOT theirs.is_blocked
		ORDER BY mine.contact_id`

	rows, err := r.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
