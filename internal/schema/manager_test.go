package schema_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/schema"
	"github.com/aqasim81/store-bootstrap/internal/scope"
)

func newTestManager(t *testing.T) (*schema.Manager, *database.Store) {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "schema.db")

	store, err := database.Open(ctx, "sqlite://"+path)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	scopes := scope.NewManager(store.DB)

	return schema.NewManager(scopes, store.Dialect), store
}

func TestCheckExists_emptyStore_allMissing(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager(t)

	st, err := mgr.CheckExists(context.Background())
	require.NoError(t, err)

	assert.False(t, st.Satisfied())
	assert.ElementsMatch(t, mgr.Manifest().TableNames(), st.Missing)
	assert.Empty(t, st.Extra)
	assert.Empty(t, st.Invalid)
}

func TestCreate_emptyStore_createsEverythingOnce(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager(t)
	ctx := context.Background()

	result, err := mgr.Create(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, mgr.Manifest().TableNames(), result.TablesCreated)
	assert.Empty(t, result.Warnings)

	st, err := mgr.CheckExists(ctx)
	require.NoError(t, err)
	assert.True(t, st.Satisfied())

	// Re-running must leave pre-existing tables untouched.
	again, err := mgr.Create(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.TablesCreated)
	assert.ElementsMatch(t, mgr.Manifest().TableNames(), again.Skipped)
}

func TestValidate_freshSchema_noFindings(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx)
	require.NoError(t, err)

	report, err := mgr.Validate(ctx)
	require.NoError(t, err)

	assert.Empty(t, report.Findings)
	assert.False(t, report.HasBlocking())
}

func TestValidate_missingRequiredTable_isCritical(t *testing.T) {
	t.Parallel()

	mgr, store := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx)
	require.NoError(t, err)

	_, err = store.DB.ExecContext(ctx, "DROP TABLE users")
	require.NoError(t, err)

	report, err := mgr.Validate(ctx)
	require.NoError(t, err)

	assert.Equal(t, schema.Critical, report.MaxSeverity)
	assert.True(t, report.HasBlocking())
}

func TestValidate_extraTable_isInfo(t *testing.T) {
	t.Parallel()

	mgr, store := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx)
	require.NoError(t, err)

	_, err = store.DB.ExecContext(ctx, "CREATE TABLE legacy_audit (id TEXT PRIMARY KEY)")
	require.NoError(t, err)

	report, err := mgr.Validate(ctx)
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, schema.Info, report.Findings[0].Severity)
	assert.Equal(t, "legacy_audit", report.Findings[0].Table)
	assert.False(t, report.HasBlocking())
}

func TestValidate_missingNonCriticalIndex_isWarning(t *testing.T) {
	t.Parallel()

	mgr, store := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx)
	require.NoError(t, err)

	_, err = store.DB.ExecContext(ctx, "DROP INDEX idx_users_tenant")
	require.NoError(t, err)

	report, err := mgr.Validate(ctx)
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, schema.Warning, report.Findings[0].Severity)
	assert.Equal(t, "idx_users_tenant", report.Findings[0].Object)
}

func TestRepair_recreatesMissingIndexAndTable(t *testing.T) {
	t.Parallel()

	mgr, store := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx)
	require.NoError(t, err)

	_, err = store.DB.ExecContext(ctx, "DROP INDEX idx_users_email")
	require.NoError(t, err)
	_, err = store.DB.ExecContext(ctx, "DROP TABLE schema_migrations")
	require.NoError(t, err)

	result, err := mgr.Repair(ctx)
	require.NoError(t, err)

	assert.Len(t, result.Repaired, 2)
	assert.Empty(t, result.ManualActions)

	report, err := mgr.Validate(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
}

func TestRepair_addsMissingNullableColumn(t *testing.T) {
	t.Parallel()

	mgr, store := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx)
	require.NoError(t, err)

	_, err = store.DB.ExecContext(ctx, "ALTER TABLE users DROP COLUMN display_name")
	require.NoError(t, err)

	result, err := mgr.Repair(ctx)
	require.NoError(t, err)

	require.Len(t, result.Repaired, 1)
	assert.Contains(t, result.Repaired[0], "display_name")

	report, err := mgr.Validate(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Findings)
}

func TestSeverity_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "INFO", schema.Info.String())
	assert.Equal(t, "WARNING", schema.Warning.String())
	assert.Equal(t, "ERROR", schema.Error.String())
	assert.Equal(t, "CRITICAL", schema.Critical.String())
}

func TestSeverity_Blocking(t *testing.T) {
	t.Parallel()

	assert.False(t, schema.Info.Blocking())
	assert.False(t, schema.Warning.Blocking())
	assert.False(t, schema.Error.Blocking())
	assert.True(t, schema.Critical.Blocking())
}
