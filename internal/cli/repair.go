package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/store-bootstrap/internal/schema"
	"github.com/aqasim81/store-bootstrap/internal/scope"
)

var repairCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "repair",
	Short: "Attempt non-destructive schema repair",
	Long: `Re-validate the schema and apply the fixes that cannot lose data:
recreating missing tables and indexes, adding missing nullable columns.
Anything destructive is listed as a manual action instead.`,
	RunE: runRepair,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	store, err := openStore(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // closing on command exit

	scopes := scope.NewManager(store.DB, scope.WithOrigin(scope.OriginRequest))

	result, err := schema.NewManager(scopes, store.Dialect).Repair(ctx)
	if err != nil {
		return fmt.Errorf("repairing schema: %w", err)
	}

	if len(result.Repaired) == 0 && len(result.ManualActions) == 0 {
		fmt.Fprintln(out, "Nothing to repair.")

		return nil
	}

	for _, item := range result.Repaired {
		fmt.Fprintf(out, "  repaired: %s\n", item)
	}

	for _, action := range result.ManualActions {
		fmt.Fprintf(out, "  manual action required: %s\n", action)
	}

	fmt.Fprintf(out, "\nRepair complete: %d fixed, %d need manual attention.\n",
		len(result.Repaired), len(result.ManualActions))

	return nil
}
