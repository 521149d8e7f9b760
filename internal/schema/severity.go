package schema

// Severity grades a validation finding.
type Severity int

const (
	// Info indicates a harmless observation, such as an extra table.
	Info Severity = iota
	// Warning indicates a degraded but serviceable condition, such as a
	// missing non-critical index.
	Warning
	// Error indicates a structural defect, such as a missing required column.
	Error
	// Critical indicates the store is unusable, such as a missing required table.
	Critical
)

// String returns the uppercase label for the severity level.
func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Blocking reports whether a finding of this severity should fail a
// bootstrap run rather than merely degrade it.
func (s Severity) Blocking() bool {
	return s >= Critical
}
