package catalog

import "errors"

// ErrOrderConflict indicates two migration definitions share a version.
var ErrOrderConflict = errors.New("migration version order conflict")

// ErrDestructiveStatement indicates a forward migration contains a
// statement the safety scan refuses to run without an explicit override.
var ErrDestructiveStatement = errors.New("destructive statement in forward migration")
