// Package migrate applies and reverses catalog migrations against the
// store, keeping the durable ledger accurate statement by statement. A
// failure partway never leaves the ledger claiming more than actually
// landed.
package migrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aqasim81/store-bootstrap/internal/catalog"
	"github.com/aqasim81/store-bootstrap/internal/ledger"
	"github.com/aqasim81/store-bootstrap/internal/scope"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusReversed  = "reversed"
)

// ProgressEvent is emitted by the runner for each migration processed.
type ProgressEvent struct {
	Migration catalog.Migration
	Status    string
	Duration  time.Duration
	Error     error
}

// ApplyResult reports which migrations an Apply pass touched.
type ApplyResult struct {
	Applied []string
	Skipped []string
	// Failed is the version that stopped the pass, empty on success.
	Failed string
	// Reversed reports whether the failed migration's reverse operation
	// ran, leaving the store at the last consistent applied state.
	Reversed bool
}

// RollbackResult reports which ledger entries a rollback removed.
type RollbackResult struct {
	Reversed []string
}

// execFunc executes one migration's SQL inside a scope. Injectable for tests.
type execFunc func(ctx context.Context, s *scope.Scope, sql string) error

// Runner applies pending migrations strictly in ascending version order.
type Runner struct {
	scopes           *scope.Manager
	ledger           *ledger.Ledger
	catalog          catalog.Catalog
	statementTimeout time.Duration
	onProgress       func(ProgressEvent)
	execSQL          execFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithStatementTimeout bounds each individual migration statement.
func WithStatementTimeout(d time.Duration) Option {
	return func(r *Runner) { r.statementTimeout = d }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// withExecFunc overrides SQL execution. Used by tests to force failures.
func withExecFunc(fn execFunc) Option {
	return func(r *Runner) { r.execSQL = fn }
}

// NewRunner creates a Runner over the given scope manager, ledger, and catalog.
func NewRunner(scopes *scope.Manager, l *ledger.Ledger, c catalog.Catalog, opts ...Option) *Runner {
	r := &Runner{scopes: scopes, ledger: l, catalog: c}

	for _, opt := range opts {
		opt(r)
	}

	if r.execSQL == nil {
		r.execSQL = r.executeStatements
	}

	return r
}

// Pending returns catalog migrations with no ledger entry, ascending.
func (r *Runner) Pending(ctx context.Context) ([]catalog.Migration, error) {
	if err := r.ledger.EnsureTable(ctx); err != nil {
		return nil, err
	}

	applied, err := r.ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(applied))
	for _, rec := range applied {
		seen[rec.Version] = true
	}

	var pending []catalog.Migration

	for _, m := range r.catalog.All() {
		if !seen[m.Version] {
			pending = append(pending, m)
		}
	}

	return pending, nil
}

// History returns the ledger entries in ascending version order.
func (r *Runner) History(ctx context.Context) ([]ledger.Record, error) {
	if err := r.ledger.EnsureTable(ctx); err != nil {
		return nil, err
	}

	return r.ledger.Applied(ctx)
}

// Apply executes pending migrations strictly in order, writing a ledger
// entry immediately after each success. On the first failure it stops,
// attempts the failed migration's reverse operation if one exists, and
// reports which migrations remain applied.
func (r *Runner) Apply(ctx context.Context) (ApplyResult, error) {
	var result ApplyResult

	if err := r.ledger.EnsureTable(ctx); err != nil {
		return result, err
	}

	for _, m := range r.catalog.All() {
		skip, err := r.shouldSkip(ctx, m)
		if err != nil {
			return result, err
		}

		if skip {
			result.Skipped = append(result.Skipped, m.Version)
			r.fireProgress(ProgressEvent{Migration: m, Status: StatusSkipped})

			continue
		}

		if err := r.applyOne(ctx, m, &result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// Rollback reverses ledger entries newer than target, newest-first,
// failing fast before touching anything if any reversal is unavailable.
// Entries at or below target are untouched.
func (r *Runner) Rollback(ctx context.Context, target string) (RollbackResult, error) {
	var result RollbackResult

	if err := r.ledger.EnsureTable(ctx); err != nil {
		return result, err
	}

	if target != "" {
		if _, ok := r.catalog.Get(target); !ok {
			return result, fmt.Errorf("%w: %s", ErrTargetNotFound, target)
		}
	}

	applied, err := r.ledger.Applied(ctx)
	if err != nil {
		return result, err
	}

	var toReverse []catalog.Migration

	for i := len(applied) - 1; i >= 0; i-- {
		rec := applied[i]
		if rec.Version <= target {
			break
		}

		m, ok := r.catalog.Get(rec.Version)
		if !ok || !m.Reversible() {
			return result, fmt.Errorf("migration %s: %w", rec.Version, ErrNoReverseAvailable)
		}

		toReverse = append(toReverse, m)
	}

	for _, m := range toReverse {
		err := r.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
			return r.execSQL(ctx, s, m.DownSQL)
		})
		if err != nil {
			return result, fmt.Errorf("reversing migration %s: %w", m.Version, err)
		}

		if err := r.ledger.Remove(ctx, m.Version); err != nil {
			return result, err
		}

		result.Reversed = append(result.Reversed, m.Version)
		r.fireProgress(ProgressEvent{Migration: m, Status: StatusReversed})
	}

	return result, nil
}

// VerifyChecksums compares every ledger entry against its catalog
// definition. A mismatch means the catalog changed after being applied.
func (r *Runner) VerifyChecksums(ctx context.Context) ([]string, error) {
	applied, err := r.ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}

	var mismatched []string

	for _, rec := range applied {
		m, ok := r.catalog.Get(rec.Version)
		if !ok {
			continue // applied from a catalog this binary no longer carries
		}

		if m.Checksum != rec.Checksum {
			mismatched = append(mismatched, rec.Version)
		}
	}

	return mismatched, nil
}

// applyOne executes a single pending migration and records it.
func (r *Runner) applyOne(ctx context.Context, m catalog.Migration, result *ApplyResult) error {
	r.fireProgress(ProgressEvent{Migration: m, Status: StatusStarting})

	start := time.Now()

	execErr := r.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		return r.execSQL(ctx, s, m.UpSQL)
	})

	duration := time.Since(start)

	if execErr == nil {
		if err := r.ledger.Append(ctx, m.Version, m.Name, m.Checksum); err != nil {
			return fmt.Errorf("recording migration %s: %w", m.Version, err)
		}

		result.Applied = append(result.Applied, m.Version)
		r.fireProgress(ProgressEvent{Migration: m, Status: StatusCompleted, Duration: duration})

		return nil
	}

	result.Failed = m.Version
	r.fireProgress(ProgressEvent{Migration: m, Status: StatusFailed, Duration: duration, Error: execErr})

	if !m.Reversible() {
		return fmt.Errorf(
			"migration %s: %w: %w: store left at last consistent state, manual intervention required before retrying",
			m.Version, ErrApplyFailure, ErrNoReverseAvailable,
		)
	}

	reverseErr := r.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		return r.execSQL(ctx, s, m.DownSQL)
	})
	if reverseErr != nil {
		return fmt.Errorf("migration %s: %w: %w (reverse also failed: %v)",
			m.Version, ErrApplyFailure, execErr, reverseErr)
	}

	result.Reversed = true
	r.fireProgress(ProgressEvent{Migration: m, Status: StatusReversed})

	return fmt.Errorf("migration %s: %w: %w", m.Version, ErrApplyFailure, execErr)
}

// shouldSkip returns true if the migration is already in the ledger,
// verifying the recorded checksum against the catalog definition.
func (r *Runner) shouldSkip(ctx context.Context, m catalog.Migration) (bool, error) {
	applied, err := r.ledger.IsApplied(ctx, m.Version)
	if err != nil {
		return false, err
	}

	if !applied {
		return false, nil
	}

	stored, err := r.ledger.Checksum(ctx, m.Version)
	if err != nil {
		return false, err
	}

	if stored != m.Checksum {
		return false, fmt.Errorf(
			"migration %s: %w: ledger=%s catalog=%s",
			m.Version, ErrChecksumMismatch, stored, m.Checksum,
		)
	}

	return true, nil
}

// executeStatements runs each statement of a migration with the
// configured per-statement timeout.
func (r *Runner) executeStatements(ctx context.Context, s *scope.Scope, sql string) error {
	for _, stmt := range splitStatements(sql) {
		if err := r.executeOne(ctx, s, stmt); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) executeOne(ctx context.Context, s *scope.Scope, stmt string) error {
	if r.statementTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.statementTimeout)
		defer cancel()
	}

	if _, err := s.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("executing %q: %w", truncateSQL(stmt, 60), err)
	}

	return nil
}

func (r *Runner) fireProgress(event ProgressEvent) {
	if r.onProgress != nil {
		r.onProgress(event)
	}
}

// splitStatements splits a migration script on semicolons outside string
// literals, dropping empty fragments. The pgx driver rejects
// multi-statement strings in its default protocol, so statements run
// one at a time on both backends.
func splitStatements(sql string) []string {
	var (
		stmts   []string
		current strings.Builder
		inQuote bool
	)

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		switch {
		case c == '\'':
			inQuote = !inQuote
			current.WriteByte(c)
		case c == ';' && !inQuote:
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				stmts = append(stmts, stmt)
			}

			current.Reset()
		default:
			current.WriteByte(c)
		}
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		stmts = append(stmts, stmt)
	}

	return stmts
}

func truncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen {
		return sql
	}

	return sql[:maxLen-3] + "..."
}
