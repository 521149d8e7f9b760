// Package catalog holds the ordered set of known migration definitions:
// the built-in baseline plus any loaded from a migrations directory.
// The catalog is static input to the migration runner; the durable
// ledger decides what has actually been applied.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// SourceBuiltin marks migrations compiled into the binary.
const SourceBuiltin = "builtin"

// Migration is a single versioned schema change. DownSQL is empty when
// the migration defines no reverse operation.
type Migration struct {
	Version  string // monotonic identifier: "001" or "20240101120000"
	Name     string // "create_tenants" — doubles as the ledger description
	UpSQL    string
	DownSQL  string
	Checksum string // SHA-256 hex digest of UpSQL
	Source   string // SourceBuiltin or the .up.sql file path
}

// Reversible reports whether the migration defines a reverse operation.
func (m Migration) Reversible() bool { return m.DownSQL != "" }

// ComputeChecksum returns the SHA-256 hex digest of the given SQL string.
func ComputeChecksum(sql string) string {
	h := sha256.Sum256([]byte(sql))

	return hex.EncodeToString(h[:])
}

// Catalog is a totally ordered, duplicate-free migration set.
type Catalog struct {
	migrations []Migration
}

// New builds a Catalog from the given migrations, sorting them by
// version. A duplicate version is an ordering conflict.
func New(migrations ...Migration) (Catalog, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Version == sorted[i-1].Version {
			return Catalog{}, fmt.Errorf("%w: version %s defined by %s and %s",
				ErrOrderConflict, sorted[i].Version, sorted[i-1].Name, sorted[i].Name)
		}
	}

	return Catalog{migrations: sorted}, nil
}

// All returns the migrations in ascending version order.
func (c Catalog) All() []Migration {
	out := make([]Migration, len(c.migrations))
	copy(out, c.migrations)

	return out
}

// Get returns the migration with the given version.
func (c Catalog) Get(version string) (Migration, bool) {
	for _, m := range c.migrations {
		if m.Version == version {
			return m, true
		}
	}

	return Migration{}, false
}

// Len returns the number of migrations in the catalog.
func (c Catalog) Len() int { return len(c.migrations) }
