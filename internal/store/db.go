package store

import (
	"context"
	"database/sql"
)

// DBTX is the query surface the postgres stores need. *sql.DB satisfies it
// in production and *sql.Tx in integration tests, which roll back on exit.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
