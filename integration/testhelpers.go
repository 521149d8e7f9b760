//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/store-bootstrap/internal/database"
)

const (
	postgresImage = "postgres:16-alpine"
	testDB        = "bootstrap_test"
	testUser      = "bootstrap"
	testPassword  = "bootstrap"
)

// StartPostgres starts a PostgreSQL 16 container and returns its DSN.
// The container is terminated when the test completes.
func StartPostgres(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return "postgres://" + testUser + ":" + testPassword + "@" +
		host + ":" + port.Port() + "/" + testDB + "?sslmode=disable"
}

// SetupStore starts a PostgreSQL container and opens a Store against it.
// Both are cleaned up when the test completes.
func SetupStore(t *testing.T) *database.Store {
	t.Helper()

	return OpenStore(t, StartPostgres(t))
}

// OpenStore opens a Store for the given DSN with test cleanup attached.
func OpenStore(t *testing.T, dsn string) *database.Store {
	t.Helper()

	store, err := database.Open(context.Background(), dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}
