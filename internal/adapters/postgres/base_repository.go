package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the executor surface shared by the pool, an open
// transaction, and the pgxmock pool used in tests.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// BaseRepository carries the pool and picks the executor per call: the
// transaction bound to the context when one is open, the pool otherwise.
type BaseRepository struct {
	pool *pgxpool.Pool
}

func NewBaseRepository(pool *pgxpool.Pool) BaseRepository {
	return BaseRepository{pool: pool}
}

func (r *BaseRepository) conn(ctx context.Context) querier {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return r.pool
}
