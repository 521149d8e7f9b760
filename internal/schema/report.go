package schema

// State is the diff between expected and observed tables, recomputed on
// each check and never persisted.
type State struct {
	Expected []string
	Observed []string
	Missing  []string
	Extra    []string
	// Invalid lists present tables whose structure does not match the
	// manifest (missing required columns or wrong type family).
	Invalid []string
}

// Satisfied reports whether every expected table exists with a valid structure.
func (s State) Satisfied() bool {
	return len(s.Missing) == 0 && len(s.Invalid) == 0
}

// Finding is one validation observation about the schema.
type Finding struct {
	Severity Severity
	Table    string
	Object   string // column or index name, empty for table-level findings
	Message  string
}

// ValidationReport collects findings with the maximum severity across them.
type ValidationReport struct {
	Findings    []Finding
	MaxSeverity Severity
}

// Add appends a finding and raises MaxSeverity if needed.
func (r *ValidationReport) Add(f Finding) {
	r.Findings = append(r.Findings, f)

	if f.Severity > r.MaxSeverity {
		r.MaxSeverity = f.Severity
	}
}

// Merge folds another report's findings into this one.
func (r *ValidationReport) Merge(other ValidationReport) {
	for _, f := range other.Findings {
		r.Add(f)
	}
}

// HasBlocking reports whether any finding should fail a bootstrap run.
func (r *ValidationReport) HasBlocking() bool {
	return r.MaxSeverity.Blocking()
}

// CreateResult reports the outcome of creating missing schema objects.
type CreateResult struct {
	TablesCreated  []string
	IndexesCreated []string
	Skipped        []string
	Warnings       []string
}

// RepairResult reports the outcome of a non-destructive repair pass.
// Destructive work is never performed; it is listed as manual actions.
type RepairResult struct {
	Repaired      []string
	ManualActions []string
}
