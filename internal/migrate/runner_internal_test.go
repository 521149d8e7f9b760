package migrate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/store-bootstrap/internal/catalog"
	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/ledger"
	"github.com/aqasim81/store-bootstrap/internal/scope"
)

func testScopes(t *testing.T) (*scope.Manager, *ledger.Ledger) {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "internal.db")

	store, err := database.Open(ctx, "sqlite://"+path)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	scopes := scope.NewManager(store.DB)

	return scopes, ledger.New(scopes, store.Dialect)
}

func TestApply_failureAtK_leavesExactPrefixInLedger(t *testing.T) {
	t.Parallel()

	scopes, l := testScopes(t)
	ctx := context.Background()

	boom := errors.New("disk full")

	// Fail the forward SQL of migration 003 (create_users); everything
	// else, including its reverse, executes normally.
	r := NewRunner(scopes, l, catalog.Builtin(), withExecFunc(
		func(ctx context.Context, s *scope.Scope, sql string) error {
			if strings.Contains(sql, "users") && !strings.Contains(sql, "DROP") {
				return boom
			}

			return defaultExec(ctx, s, sql)
		},
	))

	result, err := r.Apply(ctx)
	require.ErrorIs(t, err, ErrApplyFailure)
	assert.Contains(t, err.Error(), "migration 003")

	assert.Equal(t, []string{"001", "002"}, result.Applied)
	assert.Equal(t, "003", result.Failed)
	assert.True(t, result.Reversed, "failed migration's reverse operation ran")

	history, err := r.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "001", history[0].Version)
	assert.Equal(t, "002", history[1].Version)
}

func TestApply_failureWithoutReverse_requiresManualIntervention(t *testing.T) {
	t.Parallel()

	scopes, l := testScopes(t)
	ctx := context.Background()

	c, err := catalog.New(catalog.Migration{
		Version:  "001",
		Name:     "irreversible",
		UpSQL:    "CREATE TABLE one_way (id TEXT)",
		Checksum: catalog.ComputeChecksum("CREATE TABLE one_way (id TEXT)"),
	})
	require.NoError(t, err)

	r := NewRunner(scopes, l, c, withExecFunc(
		func(context.Context, *scope.Scope, string) error {
			return errors.New("boom")
		},
	))

	_, err = r.Apply(ctx)
	require.ErrorIs(t, err, ErrApplyFailure)
	require.ErrorIs(t, err, ErrNoReverseAvailable)
	assert.Contains(t, err.Error(), "manual intervention")
}

// defaultExec mirrors the runner's real statement execution for the
// portions of a forced-failure test that should still succeed.
func defaultExec(ctx context.Context, s *scope.Scope, sql string) error {
	for _, stmt := range splitStatements(sql) {
		if _, err := s.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "two statements",
			sql:  "CREATE TABLE a (id TEXT);\nCREATE TABLE b (id TEXT)",
			want: []string{"CREATE TABLE a (id TEXT)", "CREATE TABLE b (id TEXT)"},
		},
		{
			name: "semicolon inside literal",
			sql:  "INSERT INTO t (v) VALUES ('a;b'); DELETE FROM t",
			want: []string{"INSERT INTO t (v) VALUES ('a;b')", "DELETE FROM t"},
		},
		{
			name: "trailing semicolon and whitespace",
			sql:  "SELECT 1;  ",
			want: []string{"SELECT 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, splitStatements(tt.sql))
		})
	}
}
