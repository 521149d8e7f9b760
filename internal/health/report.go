package health

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/schema"
)

// DiagnosticReport is the read-only aggregate the Health Validator
// produces: connectivity, schema, and data findings with an overall
// severity equal to the maximum severity of its parts.
type DiagnosticReport struct {
	GeneratedAt        time.Time
	StoreKind          database.Kind
	Connectivity       bool
	Schema             schema.ValidationReport
	Data               schema.ValidationReport
	ChecksumMismatches []string
	Overall            schema.Severity
}

// HasCritical reports whether any part of the diagnosis is critical.
func (r DiagnosticReport) HasCritical() bool {
	return r.Overall >= schema.Critical
}

// Render writes the report as operator-readable text. Output is
// deterministic for a given report (the timestamp is not printed).
func (r DiagnosticReport) Render(w io.Writer) {
	fmt.Fprintf(w, "store kind:   %s\n", r.StoreKind)

	if r.Connectivity {
		fmt.Fprintf(w, "connectivity: ok\n")
	} else {
		fmt.Fprintf(w, "connectivity: unreachable\n")
	}

	fmt.Fprintf(w, "\nschema findings:\n")
	renderFindings(w, r.Schema.Findings)

	fmt.Fprintf(w, "\ndata findings:\n")
	renderFindings(w, r.Data.Findings)

	fmt.Fprintf(w, "\nmigration checksums: ")

	if len(r.ChecksumMismatches) == 0 {
		fmt.Fprintf(w, "clean\n")
	} else {
		fmt.Fprintf(w, "mismatched: %s\n", strings.Join(r.ChecksumMismatches, ", "))
	}

	fmt.Fprintf(w, "\noverall: %s\n", r.Overall)
}

func renderFindings(w io.Writer, findings []schema.Finding) {
	if len(findings) == 0 {
		fmt.Fprintf(w, "  (none)\n")
		return
	}

	for _, f := range findings {
		target := f.Table
		if f.Object != "" {
			target += "." + f.Object
		}

		fmt.Fprintf(w, "  [%s] %s: %s\n", f.Severity, target, f.Message)
	}
}
