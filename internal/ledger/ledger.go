// Package ledger manages the schema_migrations table: the durable,
// ordered record of which migrations have been applied. The ledger is
// the single source of truth; nothing else in the system may bypass or
// hand-edit it.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/schema"
	"github.com/aqasim81/store-bootstrap/internal/scope"
)

// Record is one ledger entry.
type Record struct {
	Version     string
	Description string
	Checksum    string
	AppliedAt   time.Time
}

// Ledger reads and writes the migration ledger through bound scopes.
type Ledger struct {
	scopes  *scope.Manager
	dialect database.Dialect
}

// New creates a Ledger backed by the given scope manager and dialect.
func New(scopes *scope.Manager, dialect database.Dialect) *Ledger {
	return &Ledger{scopes: scopes, dialect: dialect}
}

// EnsureTable creates the schema_migrations table if it does not exist.
func (l *Ledger) EnsureTable(ctx context.Context) error {
	return l.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		if _, err := s.ExecContext(ctx, schema.CreateLedgerSQL); err != nil {
			return fmt.Errorf("%w: %w", ErrTableCreation, err)
		}

		return nil
	})
}

// Applied returns all ledger entries ordered by version ascending.
func (l *Ledger) Applied(ctx context.Context) ([]Record, error) {
	var applied []Record

	err := l.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		rows, err := s.QueryContext(ctx,
			`SELECT version, description, checksum, applied_at
			 FROM schema_migrations
			 ORDER BY version`,
		)
		if err != nil {
			return fmt.Errorf("querying ledger: %w", err)
		}
		defer rows.Close()

		applied = applied[:0]

		for rows.Next() {
			var r Record
			if err := rows.Scan(&r.Version, &r.Description, &r.Checksum, &r.AppliedAt); err != nil {
				return fmt.Errorf("scanning ledger row: %w", err)
			}

			applied = append(applied, r)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return applied, nil
}

// IsApplied checks whether a migration version has a ledger entry.
func (l *Ledger) IsApplied(ctx context.Context, version string) (bool, error) {
	var exists bool

	err := l.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		query := l.dialect.Rebind(
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)`,
		)

		if err := s.QueryRowContext(ctx, query, version).Scan(&exists); err != nil {
			return fmt.Errorf("checking if migration %s is applied: %w", version, err)
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return exists, nil
}

// Append inserts a ledger entry for a migration that just succeeded.
// Entries are never mutated after insertion.
func (l *Ledger) Append(ctx context.Context, version, description, checksum string) error {
	return l.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		query := l.dialect.Rebind(
			`INSERT INTO schema_migrations (version, description, checksum, applied_at)
			 VALUES (?, ?, ?, ?)`,
		)

		if _, err := s.ExecContext(ctx, query, version, description, checksum, time.Now().UTC()); err != nil {
			if database.IsDuplicate(err) {
				return fmt.Errorf("migration %s: %w", version, ErrDuplicateEntry)
			}

			return fmt.Errorf("recording migration %s: %w", version, err)
		}

		return nil
	})
}

// Remove deletes the ledger entry for a rolled-back migration.
func (l *Ledger) Remove(ctx context.Context, version string) error {
	return l.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		query := l.dialect.Rebind(`DELETE FROM schema_migrations WHERE version = ?`)

		tag, err := s.ExecContext(ctx, query, version)
		if err != nil {
			return fmt.Errorf("removing ledger entry %s: %w", version, err)
		}

		affected, err := tag.RowsAffected()
		if err != nil {
			return fmt.Errorf("removing ledger entry %s: %w", version, err)
		}

		if affected == 0 {
			return fmt.Errorf("migration %s: %w", version, ErrEntryNotFound)
		}

		return nil
	})
}

// Checksum returns the recorded checksum for a migration version.
func (l *Ledger) Checksum(ctx context.Context, version string) (string, error) {
	var checksum string

	err := l.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		query := l.dialect.Rebind(`SELECT checksum FROM schema_migrations WHERE version = ?`)

		if err := s.QueryRowContext(ctx, query, version).Scan(&checksum); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("migration %s: %w", version, ErrEntryNotFound)
			}

			return fmt.Errorf("getting checksum for migration %s: %w", version, err)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return checksum, nil
}
