package postgres

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
)

const DefaultQueryTimeout = 5 * time.Second

// withTimeout wraps a context with a default query timeout if not already set
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultQueryTimeout)
}

// Nullable field converters - from Go to SQL

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Nullable field extractors - from SQL to Go

// getString extracts a string from sql.NullString, returning empty string if null
func getString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// getTimePtr extracts a *time.Time from sql.NullTime, returning nil if null
func getTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// checkNoRows returns true if the error is pgx.ErrNoRows
func checkNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// pairLockKey derives a stable advisory-lock key for an unordered pair of
// ids, used to serialize idempotent direct-conversation creation.
func pairLockKey(a, b string) int64 {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	h := fnv.New64a()
	h.Write([]byte(lo))
	h.Write([]byte{0})
	h.Write([]byte(hi))
	return int64(h.Sum64())
}
