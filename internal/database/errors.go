package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrInvalidDatabaseURL indicates the provided database URL could not be classified.
var ErrInvalidDatabaseURL = errors.New("invalid database URL")

// ErrConnectionFailed indicates a connection to the store could not be established.
var ErrConnectionFailed = errors.New("store connection failed")

// ErrClaimNotAcquired indicates the bootstrap claim is already held by another process.
var ErrClaimNotAcquired = errors.New("bootstrap claim not acquired")

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// IsDuplicate reports whether err is a unique-constraint violation,
// regardless of which backend raised it.
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}

	return false
}
