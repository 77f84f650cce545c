package postgres

import (
	"context"

	"github.com/pashagolub/pgxmock/v4"
)

// setupMockContext binds the mock pool as the context transaction so
// conn() resolves to it instead of the nil real pool.
func setupMockContext(mock pgxmock.PgxPoolIface) context.Context {
	return context.WithValue(context.Background(), txKey, mock)
}
