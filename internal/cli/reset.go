package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/store-bootstrap/internal/bootstrap"
)

// errResetNotConfirmed guards the destructive reset behind an explicit flag.
var errResetNotConfirmed = errors.New("reset drops every managed table; re-run with --confirm to proceed")

var resetCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "reset",
	Short: "Drop and recreate the store (development only)",
	Long: `Drop every table the bootstrapper manages and run the full pipeline
against the resulting empty store. Destroys all data; intended for
development environments and guarded by --confirm.`,
	RunE: runReset,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	resetCmd.Flags().Bool("confirm", false, "acknowledge that all managed data will be destroyed")
	rootCmd.AddCommand(resetCmd)
}

// managedTables lists everything reset drops, in foreign-key-safe order.
var managedTables = []string{ //nolint:gochecknoglobals // fixed drop order
	"users",
	"roles",
	"tenants",
	"schema_migrations",
	"bootstrap_claim",
}

func runReset(cmd *cobra.Command, _ []string) error {
	if confirmed, _ := cmd.Flags().GetBool("confirm"); !confirmed {
		return errResetNotConfirmed
	}

	cfg := AppConfig
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	store, err := openStore(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // closing on command exit

	for _, table := range managedTables {
		if _, err := store.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("dropping table %s: %w", table, err)
		}

		fmt.Fprintf(out, "  dropped %s\n", table)
	}

	cat, err := buildCatalog(cfg)
	if err != nil {
		return err
	}

	o := bootstrap.New(store, cat,
		bootstrap.WithClaimLease(cfg.ClaimLease),
		bootstrap.WithClaimWait(cfg.ClaimWait),
		bootstrap.WithStatementTimeout(cfg.StatementTimeout),
	)

	run, runErr := o.Run(ctx)

	printRun(cmd, run)

	if runErr != nil {
		return fmt.Errorf("re-initializing after reset: %w", runErr)
	}

	return nil
}
