package scope_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/store-bootstrap/internal/scope"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scope.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func TestAcquire_opensConnectionOnce(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	opens := 0
	m := scope.NewManager(db, scope.WithOpenFunc(func(ctx context.Context) (*sql.Conn, error) {
		opens++
		return db.Conn(ctx)
	}))

	ctx := context.Background()

	outer, err := m.Acquire(ctx)
	require.NoError(t, err)

	inner, err := m.Acquire(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, opens)
	assert.Equal(t, 2, m.State().Refs)

	inner.Release()
	assert.True(t, m.State().Exists, "inner release must not tear down the scope")

	outer.Release()
	assert.False(t, m.State().Exists, "outermost release tears down the scope")
	assert.Equal(t, 0, m.State().Refs)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	m := scope.NewManager(db)
	ctx := context.Background()

	assert.False(t, m.Validate(ctx), "no scope yet")

	s, err := m.Acquire(ctx)
	require.NoError(t, err)

	assert.True(t, m.Validate(ctx))

	s.Release()
	assert.False(t, m.Validate(ctx))
}

func TestWithScope_runsWithValidScope(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	m := scope.NewManager(db)

	err := m.WithScope(context.Background(), func(ctx context.Context, s *scope.Scope) error {
		var one int
		row := s.QueryRowContext(ctx, "SELECT 1")

		return row.Scan(&one)
	})
	require.NoError(t, err)

	assert.False(t, m.State().Exists, "scope created by WithScope is released by it")
}

func TestWithScope_reusesOuterScope(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	m := scope.NewManager(db)
	ctx := context.Background()

	outer, err := m.Acquire(ctx)
	require.NoError(t, err)

	err = m.WithScope(ctx, func(context.Context, *scope.Scope) error {
		assert.Equal(t, 2, m.State().Refs)
		return nil
	})
	require.NoError(t, err)

	assert.True(t, m.State().Exists, "nested WithScope must not destroy the outer scope")
	outer.Release()
}

func TestWithScope_singleLossRecoversAndRetries(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	m := scope.NewManager(db)

	calls := 0
	err := m.WithScope(context.Background(), func(context.Context, *scope.Scope) error {
		calls++
		if calls == 1 {
			return sql.ErrConnDone
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls, "operation retried exactly once")
	assert.Equal(t, 1, m.State().Recoveries)
}

func TestWithScope_secondLossIsFatal(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	m := scope.NewManager(db)

	calls := 0
	err := m.WithScope(context.Background(), func(context.Context, *scope.Scope) error {
		calls++
		return sql.ErrConnDone
	})

	require.ErrorIs(t, err, scope.ErrScopeLost)
	assert.Equal(t, 2, calls, "no unbounded retry loop")
}

func TestWithScope_nonLossErrorPassesThrough(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	m := scope.NewManager(db)
	boom := errors.New("boom")

	calls := 0
	err := m.WithScope(context.Background(), func(context.Context, *scope.Scope) error {
		calls++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "non-loss errors are not retried")
}

func TestWithScope_recoveryFailureIsFatal(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	opens := 0
	m := scope.NewManager(db, scope.WithOpenFunc(func(ctx context.Context) (*sql.Conn, error) {
		opens++
		if opens > 1 {
			return nil, errors.New("store unreachable")
		}

		return db.Conn(ctx)
	}))

	err := m.WithScope(context.Background(), func(context.Context, *scope.Scope) error {
		return sql.ErrConnDone
	})

	require.ErrorIs(t, err, scope.ErrScopeLost)
	require.ErrorIs(t, err, scope.ErrRecoveryFailed)
}

func TestIsLoss(t *testing.T) {
	t.Parallel()

	assert.True(t, scope.IsLoss(sql.ErrConnDone))
	assert.True(t, scope.IsLoss(fmt.Errorf("query: %w", driver.ErrBadConn)))
	assert.False(t, scope.IsLoss(errors.New("boom")))
	assert.False(t, scope.IsLoss(nil))
}

func TestState_origin(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	m := scope.NewManager(db, scope.WithOrigin(scope.OriginRequest))

	assert.Equal(t, scope.OriginRequest, m.State().Origin)
}
