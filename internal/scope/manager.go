// Package scope owns the bound execution scope required by every
// persistence operation. A scope is a dedicated database connection held
// open for the duration of one or more nested acquisitions; the manager
// reference-counts acquisitions, validates liveness with a sentinel
// query, and recreates the scope exactly once when a call site observes
// it was lost mid-operation.
package scope

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
)

// Origin records which kind of caller created the current scope.
type Origin string

const (
	// OriginOrchestrator marks a scope created by the bootstrap pipeline.
	OriginOrchestrator Origin = "orchestrator"
	// OriginRequest marks a scope created by a request-driven or
	// background caller outside the bootstrap pipeline.
	OriginRequest Origin = "request"
)

// State is a point-in-time snapshot of the manager's scope.
type State struct {
	Exists     bool
	Origin     Origin
	Refs       int
	Recoveries int
}

// RecoveryResult reports the outcome of one recovery attempt.
type RecoveryResult struct {
	Recovered bool
	Cause     error
}

// openFunc creates the underlying bound connection. Injectable for tests.
type openFunc func(ctx context.Context) (*sql.Conn, error)

// Manager creates, validates, and recovers the shared execution scope.
// Safe for use from multiple independent call sites.
type Manager struct {
	db     *sql.DB
	origin Origin
	open   openFunc

	mu         sync.Mutex
	conn       *sql.Conn
	refs       int
	recoveries int
}

// Option configures a Manager.
type Option func(*Manager)

// WithOrigin labels scopes created by this manager.
func WithOrigin(o Origin) Option {
	return func(m *Manager) { m.origin = o }
}

// WithOpenFunc overrides how the underlying connection is created.
func WithOpenFunc(fn func(ctx context.Context) (*sql.Conn, error)) Option {
	return func(m *Manager) { m.open = fn }
}

// NewManager creates a Manager that binds scopes to connections from db.
func NewManager(db *sql.DB, opts ...Option) *Manager {
	m := &Manager{db: db, origin: OriginOrchestrator}

	for _, opt := range opts {
		opt(m)
	}

	if m.open == nil {
		m.open = func(ctx context.Context) (*sql.Conn, error) {
			return db.Conn(ctx)
		}
	}

	return m
}

// Acquire binds a new scope handle. The first acquisition opens the
// underlying connection; nested acquisitions share it. Every handle must
// be released.
func (m *Manager) Acquire(ctx context.Context) (*Scope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		conn, err := m.open(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating execution scope: %w", err)
		}

		m.conn = conn
	}

	m.refs++

	return &Scope{m: m}, nil
}

// Validate reports whether the current scope is still bound to a live
// session, using a cheap sentinel query.
func (m *Manager) Validate(ctx context.Context) bool {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return false
	}

	var one int

	return conn.QueryRowContext(ctx, "SELECT 1").Scan(&one) == nil && one == 1
}

// RecoverFromLoss discards the lost connection, creates a fresh one, and
// re-validates it. The caller is expected to retry the failed operation
// exactly once on success.
func (m *Manager) RecoverFromLoss(ctx context.Context, cause error) (RecoveryResult, error) {
	m.mu.Lock()

	if m.conn != nil {
		m.conn.Close() //nolint:errcheck,gosec // connection already lost
	}

	conn, err := m.open(ctx)
	if err != nil {
		m.conn = nil
		m.mu.Unlock()

		return RecoveryResult{Cause: cause}, fmt.Errorf("%w: %w", ErrRecoveryFailed, err)
	}

	m.conn = conn
	m.recoveries++
	m.mu.Unlock()

	if !m.Validate(ctx) {
		return RecoveryResult{Cause: cause}, fmt.Errorf("%w: recreated scope failed validation", ErrRecoveryFailed)
	}

	return RecoveryResult{Recovered: true, Cause: cause}, nil
}

// WithScope runs fn with a guaranteed valid scope, creating one if
// absent and releasing it only if this call created it. If fn fails with
// a scope-loss error, the scope is recovered and fn retried exactly
// once; a second loss surfaces ErrScopeLost.
func (m *Manager) WithScope(ctx context.Context, fn func(ctx context.Context, s *Scope) error) error {
	s, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer s.Release()

	err = fn(ctx, s)
	if err == nil || !IsLoss(err) {
		return err
	}

	if _, recErr := m.RecoverFromLoss(ctx, err); recErr != nil {
		return fmt.Errorf("%w: %w", ErrScopeLost, recErr)
	}

	if retryErr := fn(ctx, s); retryErr != nil {
		if IsLoss(retryErr) {
			return fmt.Errorf("%w: operation failed again after recovery: %w", ErrScopeLost, retryErr)
		}

		return retryErr
	}

	return nil
}

// State returns a snapshot of the current scope state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		Exists:     m.conn != nil,
		Origin:     m.origin,
		Refs:       m.refs,
		Recoveries: m.recoveries,
	}
}

// release decrements the reference count, tearing the connection down
// when the outermost acquirer releases.
func (m *Manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		return
	}

	m.refs--

	if m.refs == 0 && m.conn != nil {
		m.conn.Close() //nolint:errcheck,gosec // teardown of the shared session
		m.conn = nil
	}
}

// current returns the live connection, or nil if no scope exists.
func (m *Manager) current() *sql.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.conn
}

// IsLoss reports whether err belongs to the "scope was lost" error
// class: the bound session died underneath a persistence call.
func IsLoss(err error) bool {
	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}
