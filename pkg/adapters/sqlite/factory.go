// Package sqlite implements the durable session factory over database/sql
// with the CGO-free modernc.org/sqlite driver. It owns the connection pool;
// the sessions it hands out each wrap one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/quailbot/quail/pkg/domain"
	"github.com/quailbot/quail/pkg/ports"
)

// Factory produces scoped transactional handles to the relational store.
type Factory struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

// Open creates a factory for the SQLite database at dsn
// (e.g. "file:quail.db" or "file::memory:?cache=shared").
func Open(dsn string) (*Factory, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; a single writer connection avoids
	// SQLITE_BUSY churn under concurrent units of work.
	db.SetMaxOpenConns(1)
	return &Factory{db: db}, nil
}

// Begin opens a new transactional session.
func (f *Factory) Begin(ctx context.Context) (ports.Session, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, domain.ErrBackendClosed
	}
	f.mu.Unlock()

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return &Session{tx: tx}, nil
}

// Ping verifies the database is reachable and writable enough to serve.
func (f *Factory) Ping(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return domain.ErrBackendClosed
	}
	f.mu.Unlock()

	if err := f.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Stats exposes pool counters so tests can assert connections are returned.
func (f *Factory) Stats() sql.DBStats {
	return f.db.Stats()
}

// Close releases pooled connections. Idempotent.
func (f *Factory) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	return f.db.Close()
}

// Session wraps one *sql.Tx as a ports.Session. It ends in exactly one
// Commit or Rollback; the deferred Rollback in scoped acquisition relies on
// Rollback after Commit being a no-op.
type Session struct {
	tx   *sql.Tx
	done bool
	mu   sync.Mutex
}

// ExecContext runs a statement inside the transaction.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

// QueryContext runs a query inside the transaction.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.tx.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query inside the transaction.
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.tx.QueryRowContext(ctx, query, args...)
}

// Commit makes the unit of work durable.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return sql.ErrTxDone
	}
	s.done = true
	return s.tx.Commit()
}

// Rollback discards the unit of work. Safe after Commit.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
