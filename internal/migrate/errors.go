package migrate

import "errors"

// ErrApplyFailure indicates a migration's forward SQL failed to execute.
var ErrApplyFailure = errors.New("migration apply failure")

// ErrChecksumMismatch indicates a ledger entry's checksum no longer
// matches the catalog definition it was applied from.
var ErrChecksumMismatch = errors.New("migration checksum mismatch")

// ErrNoReverseAvailable indicates a migration defines no reverse
// operation, so it cannot be rolled back.
var ErrNoReverseAvailable = errors.New("no reverse operation available")

// ErrTargetNotFound indicates a rollback target version that is neither
// in the ledger nor the catalog.
var ErrTargetNotFound = errors.New("rollback target not found")
