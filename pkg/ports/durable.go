package ports

import (
	"context"
	"database/sql"
)

// Session is a short-lived, scoped handle to the relational store: one unit
// of work that ends in exactly one Commit or Rollback. Callers must not hold
// a Session across unrelated I/O such as a light-backend round trip; that
// keeps relational locks and pooled connections from being pinned.
type Session interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row

	// Commit makes the unit of work durable. After Commit or Rollback the
	// Session is spent.
	Commit() error

	// Rollback discards the unit of work. Rolling back an already-finished
	// session is a no-op so deferred cleanup is always safe.
	Rollback() error
}

// Factory produces scoped durable sessions. It is owned and lifecycled by
// the persistence manager for the process lifetime; the sessions it hands
// out live only for one unit of work.
type Factory interface {
	// Begin opens a new transactional session.
	Begin(ctx context.Context) (Session, error)

	// Ping verifies the relational store is reachable. Used by the manager's
	// Initialize handshake; a failure there is fatal to startup.
	Ping(ctx context.Context) error

	// Close releases pooled connections. Called once during manager shutdown.
	Close() error
}
