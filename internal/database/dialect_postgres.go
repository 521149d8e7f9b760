package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BootstrapLockID is the session advisory lock identifier used as the
// bootstrap claim on PostgreSQL.
const BootstrapLockID int64 = 824656410

// postgresDialect implements Dialect for a networked PostgreSQL server.
type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Rebind(query string) string { return rebindPositional(query) }

func (postgresDialect) TableNames(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		 ORDER BY table_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

func (postgresDialect) TableColumns(ctx context.Context, q Querier, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("listing columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column

	for rows.Next() {
		var c Column

		var nullable string
		if err := rows.Scan(&c.Name, &c.Type, &nullable); err != nil {
			return nil, fmt.Errorf("scanning column row: %w", err)
		}

		c.Nullable = nullable == "YES"
		cols = append(cols, c)
	}

	return cols, rows.Err()
}

func (postgresDialect) IndexNames(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT indexname FROM pg_indexes
		 WHERE schemaname = 'public' AND tablename = $1
		 ORDER BY indexname`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("listing indexes of %s: %w", table, err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// TryClaim acquires a session-level advisory lock on a dedicated
// connection. The lease duration is ignored: the server releases the
// lock automatically when the holder's session dies, so a crashed
// holder can never leave a stale claim behind.
func (postgresDialect) TryClaim(ctx context.Context, db *sql.DB, _ string, _ time.Duration) (Claim, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for bootstrap claim: %w", err)
	}

	var acquired bool

	err = conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", BootstrapLockID).Scan(&acquired)
	if err != nil {
		conn.Close() //nolint:errcheck,gosec // best-effort return to pool

		return nil, fmt.Errorf("executing pg_try_advisory_lock: %w", err)
	}

	if !acquired {
		conn.Close() //nolint:errcheck,gosec // best-effort return to pool

		return nil, ErrClaimNotAcquired
	}

	return &advisoryClaim{conn: conn}, nil
}

// advisoryClaim pins the connection that holds the advisory lock.
type advisoryClaim struct {
	conn *sql.Conn
}

// Release unlocks the advisory lock and returns the connection to the
// pool. Safe to call multiple times; subsequent calls are no-ops.
func (c *advisoryClaim) Release(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return nil
	}

	_, err := c.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", BootstrapLockID)

	closeErr := c.conn.Close()
	c.conn = nil

	if err != nil {
		return fmt.Errorf("releasing bootstrap claim: %w", err)
	}

	if closeErr != nil {
		return fmt.Errorf("returning claim connection: %w", closeErr)
	}

	return nil
}

// scanStrings collects a single-column string result set.
func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string

	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		out = append(out, s)
	}

	return out, rows.Err()
}
