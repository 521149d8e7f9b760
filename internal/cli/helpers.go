package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aqasim81/store-bootstrap/internal/catalog"
	"github.com/aqasim81/store-bootstrap/internal/config"
	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/health"
	"github.com/aqasim81/store-bootstrap/internal/ledger"
	"github.com/aqasim81/store-bootstrap/internal/migrate"
	"github.com/aqasim81/store-bootstrap/internal/schema"
	"github.com/aqasim81/store-bootstrap/internal/scope"
)

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New(
	"database URL is required (set --database-url, BOOTSTRAP_DATABASE_URL, or database_url in config)",
)

func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return ctx
}

// openStore connects to the configured store, printing the redacted DSN.
func openStore(ctx context.Context, cfg *config.Config, out io.Writer) (*database.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, errDatabaseURLRequired
	}

	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(cfg.DatabaseURL))

	store, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}

	return store, nil
}

// buildCatalog merges the built-in baseline migrations with whatever the
// configured migrations directory holds. A missing directory means the
// deployment carries no extra migrations beyond the baseline.
func buildCatalog(cfg *config.Config) (catalog.Catalog, error) {
	builtin := catalog.Builtin()

	if _, err := os.Stat(cfg.MigrationsDir); os.IsNotExist(err) {
		return builtin, nil
	}

	loaded, err := catalog.LoadDir(cfg.MigrationsDir)
	if err != nil {
		return catalog.Catalog{}, fmt.Errorf("loading migrations: %w", err)
	}

	merged, err := catalog.Merge(builtin, loaded)
	if err != nil {
		return catalog.Catalog{}, fmt.Errorf("merging migration catalogs: %w", err)
	}

	return merged, nil
}

// validatorFor wires a health validator over an open store.
func validatorFor(store *database.Store, cat catalog.Catalog) *health.Validator {
	scopes := scope.NewManager(store.DB, scope.WithOrigin(scope.OriginRequest))
	schemas := schema.NewManager(scopes, store.Dialect)
	runner := migrate.NewRunner(scopes, ledger.New(scopes, store.Dialect), cat)

	return health.New(store, scopes, schemas, runner)
}
