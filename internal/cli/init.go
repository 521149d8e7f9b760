package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aqasim81/store-bootstrap/internal/bootstrap"
	"github.com/aqasim81/store-bootstrap/internal/catalog"
)

// errDestructiveMigrations is returned when init is blocked by
// destructive statements in forward migrations.
var errDestructiveMigrations = errors.New(
	"init aborted: destructive statements in forward migrations (use --force to override)")

var initCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "init",
	Short: "Run the full bootstrap pipeline",
	Long: `Run the full bootstrap pipeline: connectivity check, exclusive
claim, schema creation, pending migrations, baseline seed data, and a
final health validation. Exits zero on ready or degraded, non-zero on
failed.`,
	RunE: runInit,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	initCmd.Flags().Duration("claim-wait", 0, "override how long to wait for the bootstrap claim")
	initCmd.Flags().Bool("force", false, "apply migrations even if they contain destructive statements")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	store, err := openStore(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck // closing on command exit

	cat, err := buildCatalog(cfg)
	if err != nil {
		return err
	}

	if findings := catalog.ScanDestructive(cat); len(findings) > 0 {
		for _, f := range findings {
			fmt.Fprintf(out, "  unsafe: %s\n", f)
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			return errDestructiveMigrations
		}

		fmt.Fprintln(out, "  continuing despite destructive statements (--force)")
	}

	claimWait := cfg.ClaimWait
	if cmd.Flags().Changed("claim-wait") {
		claimWait, _ = cmd.Flags().GetDuration("claim-wait")
	}

	o := bootstrap.New(store, cat,
		bootstrap.WithClaimLease(cfg.ClaimLease),
		bootstrap.WithClaimWait(claimWait),
		bootstrap.WithStatementTimeout(cfg.StatementTimeout),
	)

	run, runErr := o.Run(ctx)

	printRun(cmd, run)

	if runErr != nil {
		return fmt.Errorf("bootstrap did not reach a serviceable state: %w", runErr)
	}

	return nil
}

// printRun renders the run summary with the status colored by outcome.
func printRun(cmd *cobra.Command, run *bootstrap.Run) {
	out := cmd.OutOrStdout()

	for _, step := range run.Steps {
		fmt.Fprintf(out, "  %s done\n", step)
	}

	for _, warning := range run.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", warning)
	}

	for _, errMsg := range run.Errors {
		fmt.Fprintf(out, "  error: %s\n", errMsg)
	}

	statusColor := color.New(color.FgGreen)

	switch run.Status {
	case bootstrap.StatusDegraded:
		statusColor = color.New(color.FgYellow)
	case bootstrap.StatusFailed:
		statusColor = color.New(color.FgRed)
	case bootstrap.StatusReady:
	}

	fmt.Fprintf(out, "\nBootstrap %s in %s (store kind: %s)\n",
		statusColor.Sprint(string(run.Status)),
		run.Duration().Truncate(time.Millisecond),
		run.StoreKind,
	)
}
