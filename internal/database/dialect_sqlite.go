package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// claimTableSQL is the DDL for the single-row bootstrap claim table used
// on backends without advisory locks. The CHECK constraint pins the row
// id so at most one claim can ever exist.
const claimTableSQL = `CREATE TABLE IF NOT EXISTS bootstrap_claim (
    id           INTEGER PRIMARY KEY CHECK (id = 1),
    holder       TEXT NOT NULL,
    acquired_at  TIMESTAMP NOT NULL,
    expires_at   TIMESTAMP NOT NULL
)`

// sqliteDialect implements Dialect for a file-backed embedded store.
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) TableNames(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

func (sqliteDialect) TableColumns(ctx context.Context, q Querier, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("listing columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column

	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)

		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}

		cols = append(cols, Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0 && pk == 0,
		})
	}

	return cols, rows.Err()
}

func (sqliteDialect) IndexNames(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'index' AND tbl_name = ? AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("listing indexes of %s: %w", table, err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// TryClaim inserts the single claim row. A unique-constraint violation
// means another live holder owns the claim; an expired row from a
// crashed holder is removed first so its lease cannot block forever.
func (sqliteDialect) TryClaim(ctx context.Context, db *sql.DB, holder string, lease time.Duration) (Claim, error) {
	if holder == "" {
		holder = uuid.NewString()
	}

	if _, err := db.ExecContext(ctx, claimTableSQL); err != nil {
		return nil, fmt.Errorf("creating bootstrap_claim table: %w", err)
	}

	now := time.Now().UTC()

	if _, err := db.ExecContext(ctx,
		`DELETE FROM bootstrap_claim WHERE id = 1 AND expires_at < ?`, now,
	); err != nil {
		return nil, fmt.Errorf("expiring stale claim: %w", err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO bootstrap_claim (id, holder, acquired_at, expires_at) VALUES (1, ?, ?, ?)`,
		holder, now, now.Add(lease),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrClaimNotAcquired
		}

		return nil, fmt.Errorf("inserting claim row: %w", err)
	}

	return &rowClaim{db: db, holder: holder}, nil
}

// rowClaim is a lease-guarded claim row held by one holder identity.
type rowClaim struct {
	db     *sql.DB
	holder string
}

// Release deletes the claim row if this holder still owns it. Safe to
// call multiple times; subsequent calls are no-ops.
func (c *rowClaim) Release(ctx context.Context) error {
	if c == nil || c.db == nil {
		return nil
	}

	_, err := c.db.ExecContext(ctx,
		`DELETE FROM bootstrap_claim WHERE id = 1 AND holder = ?`, c.holder,
	)
	c.db = nil

	if err != nil {
		return fmt.Errorf("releasing bootstrap claim: %w", err)
	}

	return nil
}

// isConstraintViolation reports whether err is a SQLite unique or
// primary-key constraint failure.
func isConstraintViolation(err error) bool {
	var serr sqlite3.Error

	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}
