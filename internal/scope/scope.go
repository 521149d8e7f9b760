package scope

import (
	"context"
	"database/sql"
	"sync"
)

// Scope is a handle on the shared bound execution scope. Persistence
// calls route through the manager's current connection, so a handle
// stays usable across a recovery that replaced the connection.
type Scope struct {
	m    *Manager
	once sync.Once
}

// Release returns the handle. The underlying connection is torn down
// only when the outermost acquirer releases. Safe to call multiple
// times.
func (s *Scope) Release() {
	s.once.Do(s.m.release)
}

// ExecContext executes a statement on the bound connection.
func (s *Scope) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn := s.m.current()
	if conn == nil {
		return nil, ErrNoActiveScope
	}

	return conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the bound connection.
func (s *Scope) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	conn := s.m.current()
	if conn == nil {
		return nil, ErrNoActiveScope
	}

	return conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the bound connection.
func (s *Scope) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	conn := s.m.current()
	if conn == nil {
		// Reachable only when a handle is used after Release. database/sql
		// offers no way to construct an errored Row, so run the query on a
		// one-shot pool connection instead of panicking.
		return s.m.db.QueryRowContext(ctx, query, args...)
	}

	return conn.QueryRowContext(ctx, query, args...)
}

// BeginTx opens a transaction on the bound connection.
func (s *Scope) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	conn := s.m.current()
	if conn == nil {
		return nil, ErrNoActiveScope
	}

	return conn.BeginTx(ctx, opts)
}
