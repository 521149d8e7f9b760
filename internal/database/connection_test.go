package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/store-bootstrap/internal/database"
)

func openTestStore(t *testing.T) *database.Store {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bootstrap.db")

	store, err := database.Open(ctx, "sqlite://"+path)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestOpen_emptyDSN_returnsInvalidURLError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, err := database.Open(ctx, "")

	require.ErrorIs(t, err, database.ErrInvalidDatabaseURL)
}

func TestOpen_unknownScheme_returnsInvalidURLError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, err := database.Open(ctx, "mysql://localhost/app")

	require.ErrorIs(t, err, database.ErrInvalidDatabaseURL)
}

func TestOpen_sqliteFile_detectsEmbeddedKind(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	assert.Equal(t, database.KindEmbeddedFile, store.Kind)
	assert.Equal(t, "sqlite", store.Dialect.Name())
}

func TestStore_Ping_reachable(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	require.NoError(t, store.Ping(context.Background(), 0))
}

func TestDetectKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dsn  string
		want database.Kind
	}{
		{name: "postgres URL", dsn: "postgres://u:p@localhost:5432/app", want: database.KindNetworkedServer},
		{name: "postgresql URL", dsn: "postgresql://localhost/app", want: database.KindNetworkedServer},
		{name: "sqlite URL", dsn: "sqlite://./app.db", want: database.KindEmbeddedFile},
		{name: "bare path", dsn: "./app.db", want: database.KindEmbeddedFile},
		{name: "memory path", dsn: ":memory:", want: database.KindEmbeddedFile},
		{name: "empty", dsn: "", want: database.KindUnknown},
		{name: "foreign scheme", dsn: "mysql://localhost/app", want: database.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, database.DetectKind(tt.dsn))
		})
	}
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "embedded-file", database.KindEmbeddedFile.String())
	assert.Equal(t, "networked-server", database.KindNetworkedServer.String())
	assert.Equal(t, "unknown", database.KindUnknown.String())
}
