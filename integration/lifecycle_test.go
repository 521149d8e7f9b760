//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/store-bootstrap/internal/bootstrap"
	"github.com/aqasim81/store-bootstrap/internal/catalog"
	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/seed"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countAdmins(t *testing.T, store *database.Store) int {
	t.Helper()

	var count int
	err := store.DB.QueryRowContext(context.Background(),
		store.Dialect.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`),
		seed.AdminEmail,
	).Scan(&count)
	require.NoError(t, err)

	return count
}

func TestBootstrap_emptyDatabase_becomesReady(t *testing.T) {
	t.Parallel()

	store := SetupStore(t)

	o := bootstrap.New(store, catalog.Builtin(), bootstrap.WithLogger(quietLogger()))

	run, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, bootstrap.StatusReady, run.Status)
	assert.Equal(t, database.KindNetworkedServer, run.StoreKind)
	assert.Contains(t, run.Steps, bootstrap.StepSchemaCreate)
	assert.Contains(t, run.Steps, bootstrap.StepMigrationApply)
	assert.Equal(t, 1, countAdmins(t, store))
}

func TestBootstrap_secondRun_isIdempotent(t *testing.T) {
	t.Parallel()

	store := SetupStore(t)
	ctx := context.Background()

	_, err := bootstrap.New(store, catalog.Builtin(), bootstrap.WithLogger(quietLogger())).Run(ctx)
	require.NoError(t, err)

	run, err := bootstrap.New(store, catalog.Builtin(), bootstrap.WithLogger(quietLogger())).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, bootstrap.StatusReady, run.Status)
	assert.NotContains(t, run.Steps, bootstrap.StepSchemaCreate)
	assert.NotContains(t, run.Steps, bootstrap.StepMigrationApply)
	assert.Equal(t, 1, countAdmins(t, store))
}

func TestBootstrap_concurrentProcesses_exactlyOneAdmin(t *testing.T) {
	t.Parallel()

	dsn := StartPostgres(t)
	ctx := context.Background()

	const workers = 3

	var wg sync.WaitGroup

	errs := make([]error, workers)
	runs := make([]*bootstrap.Run, workers)

	for i := range workers {
		store := OpenStore(t, dsn)
		o := bootstrap.New(store, catalog.Builtin(),
			bootstrap.WithLogger(quietLogger()),
			bootstrap.WithClaimWait(time.Minute),
			bootstrap.WithClaimBackoff(100*time.Millisecond),
		)

		wg.Add(1)

		go func() {
			defer wg.Done()

			runs[i], errs[i] = o.Run(ctx)
		}()
	}

	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i], "worker %d", i)
		assert.Equal(t, bootstrap.StatusReady, runs[i].Status, "worker %d", i)
	}

	store := OpenStore(t, dsn)
	assert.Equal(t, 1, countAdmins(t, store))
}
