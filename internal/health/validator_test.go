package health_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/store-bootstrap/internal/catalog"
	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/health"
	"github.com/aqasim81/store-bootstrap/internal/ledger"
	"github.com/aqasim81/store-bootstrap/internal/migrate"
	"github.com/aqasim81/store-bootstrap/internal/schema"
	"github.com/aqasim81/store-bootstrap/internal/scope"
	"github.com/aqasim81/store-bootstrap/internal/seed"
)

// newHealthyStore opens a fresh embedded store and brings it all the way
// up: schema created, builtin migrations applied, baseline data seeded.
func newHealthyStore(t *testing.T) (*health.Validator, *database.Store) {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "health.db")

	store, err := database.Open(ctx, "sqlite://"+path)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	scopes := scope.NewManager(store.DB)
	schemas := schema.NewManager(scopes, store.Dialect)

	_, err = schemas.Create(ctx)
	require.NoError(t, err)

	l := ledger.New(scopes, store.Dialect)
	require.NoError(t, l.EnsureTable(ctx))

	runner := migrate.NewRunner(scopes, l, catalog.Builtin())

	_, err = runner.Apply(ctx)
	require.NoError(t, err)

	_, err = seed.New(scopes, store.Dialect).Seed(ctx)
	require.NoError(t, err)

	return health.New(store, scopes, schemas, runner), store
}

func TestValidateConnectivity(t *testing.T) {
	t.Parallel()

	v, _ := newHealthyStore(t)

	assert.True(t, v.ValidateConnectivity(context.Background()))
}

func TestReport_healthyStore(t *testing.T) {
	t.Parallel()

	v, _ := newHealthyStore(t)

	report, err := v.Report(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Connectivity)
	assert.Equal(t, database.KindEmbeddedFile, report.StoreKind)
	assert.Empty(t, report.Schema.Findings)
	assert.Empty(t, report.Data.Findings)
	assert.Empty(t, report.ChecksumMismatches)
	assert.Equal(t, schema.Info, report.Overall)
	assert.False(t, report.HasCritical())
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestValidateData_missingAdmin(t *testing.T) {
	t.Parallel()

	v, store := newHealthyStore(t)
	ctx := context.Background()

	_, err := store.DB.ExecContext(ctx, `DELETE FROM users WHERE email = ?`, seed.AdminEmail)
	require.NoError(t, err)

	report, err := v.ValidateData(ctx)
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, schema.Critical, report.Findings[0].Severity)
	assert.Contains(t, report.Findings[0].Message, "administrator account missing")
}

func TestValidateData_danglingRoleReference(t *testing.T) {
	t.Parallel()

	v, store := newHealthyStore(t)
	ctx := context.Background()

	// Repoint the administrator at a role id that does not exist. The
	// member role stays intact so only the reference finding is raised.
	_, err := store.DB.ExecContext(ctx,
		`UPDATE users SET role_id = 'gone' WHERE email = ?`, seed.AdminEmail)
	require.NoError(t, err)

	report, err := v.ValidateData(ctx)
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, schema.Error, report.Findings[0].Severity)
	assert.Contains(t, report.Findings[0].Message, "does not resolve")
}

func TestValidateData_missingTenant(t *testing.T) {
	t.Parallel()

	v, store := newHealthyStore(t)
	ctx := context.Background()

	_, err := store.DB.ExecContext(ctx, `DELETE FROM users`)
	require.NoError(t, err)
	_, err = store.DB.ExecContext(ctx, `DELETE FROM roles`)
	require.NoError(t, err)
	_, err = store.DB.ExecContext(ctx, `DELETE FROM tenants`)
	require.NoError(t, err)

	report, err := v.ValidateData(ctx)
	require.NoError(t, err)

	assert.Equal(t, schema.Critical, report.MaxSeverity)

	var tables []string
	for _, f := range report.Findings {
		tables = append(tables, f.Table)
	}

	assert.Contains(t, tables, "tenants")
	assert.Contains(t, tables, "users")
}

func TestReport_checksumMismatchIsCritical(t *testing.T) {
	t.Parallel()

	v, store := newHealthyStore(t)
	ctx := context.Background()

	_, err := store.DB.ExecContext(ctx,
		`UPDATE schema_migrations SET checksum = 'tampered' WHERE version = '002'`)
	require.NoError(t, err)

	report, err := v.Report(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"002"}, report.ChecksumMismatches)
	assert.True(t, report.HasCritical())
}

func TestReport_unreachableStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "closed.db")

	store, err := database.Open(ctx, "sqlite://"+path)
	require.NoError(t, err)

	scopes := scope.NewManager(store.DB)
	schemas := schema.NewManager(scopes, store.Dialect)
	runner := migrate.NewRunner(scopes, ledger.New(scopes, store.Dialect), catalog.Builtin())

	v := health.New(store, scopes, schemas, runner, health.WithPingTimeout(200*time.Millisecond))

	require.NoError(t, store.Close())

	report, err := v.Report(ctx)
	require.NoError(t, err)

	assert.False(t, report.Connectivity)
	assert.True(t, report.HasCritical())
	assert.Empty(t, report.Schema.Findings)
}

func TestRender_golden(t *testing.T) {
	t.Parallel()

	report := health.DiagnosticReport{
		StoreKind:    database.KindEmbeddedFile,
		Connectivity: true,
		Overall:      schema.Warning,
	}
	report.Schema.Add(schema.Finding{
		Severity: schema.Warning,
		Table:    "users",
		Object:   "idx_users_tenant",
		Message:  "expected index missing",
	})
	report.Schema.Add(schema.Finding{
		Severity: schema.Info,
		Table:    "audit_log",
		Message:  "table not in expected schema",
	})

	var buf bytes.Buffer
	report.Render(&buf)

	g := goldie.New(t)
	g.Assert(t, "diagnostic_report", buf.Bytes())
}

func TestRender_healthy(t *testing.T) {
	t.Parallel()

	report := health.DiagnosticReport{
		StoreKind:    database.KindNetworkedServer,
		Connectivity: true,
	}

	var buf bytes.Buffer
	report.Render(&buf)

	out := buf.String()
	assert.Contains(t, out, "store kind:   networked-server")
	assert.Contains(t, out, "connectivity: ok")
	assert.Contains(t, out, "migration checksums: clean")
	assert.Contains(t, out, "overall: INFO")
}
