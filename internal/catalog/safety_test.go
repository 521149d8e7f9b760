package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/store-bootstrap/internal/catalog"
)

func mustCatalog(t *testing.T, migrations ...catalog.Migration) catalog.Catalog {
	t.Helper()

	c, err := catalog.New(migrations...)
	require.NoError(t, err)

	return c
}

func TestScanDestructive_builtinIsClean(t *testing.T) {
	t.Parallel()

	findings := catalog.ScanDestructive(catalog.Builtin())

	assert.Empty(t, findings)
}

func TestScanDestructive_dropTable(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t, catalog.Migration{
		Version: "001",
		Name:    "remove_audit",
		UpSQL:   "DROP TABLE audit_log;",
	})

	findings := catalog.ScanDestructive(c)

	require.Len(t, findings, 1)
	assert.Equal(t, "DROP TABLE", findings[0].Statement)
	assert.Contains(t, findings[0].String(), "001_remove_audit")
}

func TestScanDestructive_truncate(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t, catalog.Migration{
		Version: "001",
		Name:    "clear_sessions",
		UpSQL:   "TRUNCATE sessions;",
	})

	findings := catalog.ScanDestructive(c)

	require.Len(t, findings, 1)
	assert.Equal(t, "TRUNCATE", findings[0].Statement)
}

func TestScanDestructive_dropColumn(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t, catalog.Migration{
		Version: "001",
		Name:    "trim_users",
		UpSQL:   "ALTER TABLE users DROP COLUMN legacy_flags;",
	})

	findings := catalog.ScanDestructive(c)

	require.Len(t, findings, 1)
	assert.Equal(t, "ALTER TABLE DROP COLUMN", findings[0].Statement)
}

func TestScanDestructive_dropIndexIsAllowed(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t, catalog.Migration{
		Version: "001",
		Name:    "rebuild_index",
		UpSQL:   "DROP INDEX idx_users_tenant; CREATE INDEX idx_users_tenant ON users (tenant_id);",
	})

	findings := catalog.ScanDestructive(c)

	assert.Empty(t, findings)
}

func TestScanDestructive_unparseableSQLIsFlagged(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t, catalog.Migration{
		Version: "001",
		Name:    "garbled",
		UpSQL:   "CREATE TABEL broken (",
	})

	findings := catalog.ScanDestructive(c)

	require.Len(t, findings, 1)
	assert.Equal(t, "unparseable SQL", findings[0].Statement)
}

func TestScanDestructive_emptySQLIsIgnored(t *testing.T) {
	t.Parallel()

	c := mustCatalog(t, catalog.Migration{Version: "001", Name: "noop", UpSQL: "   "})

	assert.Empty(t, catalog.ScanDestructive(c))
}
