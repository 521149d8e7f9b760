package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aqasim81/store-bootstrap/internal/health"
	"github.com/aqasim81/store-bootstrap/internal/schema"
)

// errCriticalHealth is returned when the diagnostic report contains
// blocking findings, making the command exit non-zero.
var errCriticalHealth = errors.New("health check found critical issues")

var healthCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "health",
	Short: "Diagnose the store without changing it",
	Long: `Run the health validator only: connectivity, schema structure,
baseline data consistency, and migration ledger integrity. Prints a
diagnostic report and exits non-zero on critical findings.`,
	RunE: runHealth,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
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

	report, err := validatorFor(store, cat).Report(ctx)
	if err != nil {
		return fmt.Errorf("running health checks: %w", err)
	}

	printReport(out, report)

	if report.HasCritical() {
		return errCriticalHealth
	}

	return nil
}

// printReport renders the diagnostic report with findings colored by
// severity.
func printReport(out io.Writer, report health.DiagnosticReport) {
	fmt.Fprintf(out, "store kind:   %s\n", report.StoreKind)

	if report.Connectivity {
		fmt.Fprintf(out, "connectivity: %s\n", color.GreenString("ok"))
	} else {
		fmt.Fprintf(out, "connectivity: %s\n", color.RedString("unreachable"))
	}

	fmt.Fprintf(out, "\nschema findings:\n")
	printFindings(out, report.Schema.Findings)

	fmt.Fprintf(out, "\ndata findings:\n")
	printFindings(out, report.Data.Findings)

	fmt.Fprintf(out, "\nmigration checksums: ")

	if len(report.ChecksumMismatches) == 0 {
		fmt.Fprintln(out, color.GreenString("clean"))
	} else {
		fmt.Fprintln(out, color.RedString("mismatched: %s", strings.Join(report.ChecksumMismatches, ", ")))
	}

	fmt.Fprintf(out, "\noverall: %s\n", severityColor(report.Overall).Sprint(report.Overall.String()))
}

func printFindings(out io.Writer, findings []schema.Finding) {
	if len(findings) == 0 {
		fmt.Fprintln(out, "  (none)")
		return
	}

	for _, f := range findings {
		target := f.Table
		if f.Object != "" {
			target += "." + f.Object
		}

		label := severityColor(f.Severity).Sprintf("[%s]", f.Severity)
		fmt.Fprintf(out, "  %s %s: %s\n", label, target, f.Message)
	}
}

func severityColor(s schema.Severity) *color.Color {
	switch s {
	case schema.Critical:
		return color.New(color.FgRed, color.Bold)
	case schema.Error:
		return color.New(color.FgRed)
	case schema.Warning:
		return color.New(color.FgYellow)
	case schema.Info:
		return color.New(color.FgCyan)
	default:
		return color.New(color.Reset)
	}
}
