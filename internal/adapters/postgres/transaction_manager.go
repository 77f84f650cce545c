package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

// txKey carries the open transaction through the context so that every
// repository call inside WithTransaction lands on the same transaction.
const txKey contextKey = "pgx_tx"

// txFrom returns the executor bound to the context, nil when none is.
func txFrom(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey).(querier); ok {
		return tx
	}
	return nil
}

// TransactionManager implements ports.TransactionManager on pgxpool.
type TransactionManager struct {
	pool *pgxpool.Pool
}

func NewTransactionManager(pool *pgxpool.Pool) *TransactionManager {
	return &TransactionManager{pool: pool}
}

// WithTransaction runs fn inside a transaction, committing on nil and
// rolling back on error or panic. Nested calls join the outer
// transaction instead of opening their own.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = fmt.Errorf("panic recovered: %v, rollback error: %w", r, rbErr)
			} else {
				err = fmt.Errorf("panic recovered in transaction: %v", r)
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
