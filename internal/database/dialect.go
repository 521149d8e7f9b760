package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Querier is the subset of database/sql operations shared by *sql.DB,
// *sql.Conn, and *sql.Tx. Components accept a Querier so they can run
// against a bound scope connection or inside a transaction unchanged.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Column describes one observed or expected table column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Claim represents a held bootstrap claim. Release must be called when
// the holder finishes; it is safe to call more than once.
type Claim interface {
	Release(ctx context.Context) error
}

// Dialect hides backend differences: placeholder style, catalog
// introspection queries, and the claim mechanism.
type Dialect interface {
	// Name returns the dialect identifier ("postgres" or "sqlite").
	Name() string

	// Rebind rewrites ?-style placeholders into the dialect's native style.
	Rebind(query string) string

	// TableNames lists user tables visible to the connection.
	TableNames(ctx context.Context, q Querier) ([]string, error)

	// TableColumns lists the columns of one table.
	TableColumns(ctx context.Context, q Querier, table string) ([]Column, error)

	// IndexNames lists the index names defined on one table.
	IndexNames(ctx context.Context, q Querier, table string) ([]string, error)

	// TryClaim attempts to acquire the exclusive bootstrap claim.
	// Returns ErrClaimNotAcquired if another process holds it.
	TryClaim(ctx context.Context, db *sql.DB, holder string, lease time.Duration) (Claim, error)
}

// rebindPositional rewrites ? placeholders as $1..$n, leaving quoted
// string literals untouched.
func rebindPositional(query string) string {
	var b strings.Builder

	b.Grow(len(query) + 8)

	n := 0
	inQuote := false

	for i := 0; i < len(query); i++ {
		c := query[i]

		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
