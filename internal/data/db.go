// Package data holds the relational models backing tenants, sessions, API
// keys, and webhooks, following the DBTX-over-database/sql pattern the
// server has always used so callers can pass either *sql.DB or a *sql.Tx.
package data

import (
	"context"
	"database/sql"
	"errors"
)

var ErrRecordNotFound = errors.New("record not found")

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// WithTenant sets the transaction-local `app.current_tenant` variable that
// RLS policies consult, the database-side half of the tenant-scoped row
// filter (the query-layer half is the tenant_id condition carried by
// tenant-scoped queries such as SessionModel.Get).
func WithTenant(ctx context.Context, db DBTX, tenantID string) error {
	_, err := db.ExecContext(ctx, `SELECT set_config('app.current_tenant', $1, true)`, tenantID)
	return err
}
