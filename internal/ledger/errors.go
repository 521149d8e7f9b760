package ledger

import "errors"

// ErrEntryNotFound indicates no ledger entry exists for the given migration version.
var ErrEntryNotFound = errors.New("migration not found in ledger")

// ErrDuplicateEntry indicates a ledger entry for the version already
// exists; entries are append-only and never overwritten.
var ErrDuplicateEntry = errors.New("migration already recorded in ledger")

// ErrTableCreation indicates the schema_migrations table could not be created.
var ErrTableCreation = errors.New("creating schema_migrations table")
