package bootstrap

import (
	"time"

	"github.com/aqasim81/store-bootstrap/internal/database"
)

// Status is the final outcome of a bootstrap run.
type Status string

const (
	// StatusReady means every step succeeded and health is clean; the
	// hosting process may serve traffic normally.
	StatusReady Status = "ready"
	// StatusDegraded means the store is serviceable but at least one
	// advisory finding was recorded.
	StatusDegraded Status = "degraded"
	// StatusFailed means a critical step failed; the hosting process
	// must refuse to serve traffic.
	StatusFailed Status = "failed"
)

// Step names in pipeline order.
const (
	StepConnectivityCheck = "connectivity-check"
	StepClaimAcquire      = "claim-acquire"
	StepSchemaCheck       = "schema-check"
	StepSchemaCreate      = "schema-create"
	StepMigrationCheck    = "migration-check"
	StepMigrationApply    = "migration-apply"
	StepSeed              = "seed"
	StepHealthValidate    = "health-validate"
)

// Run records one orchestrator invocation: timestamps, the steps that
// completed, everything that went wrong, and the final status. It is
// mutated by the pipeline and frozen once a terminal status is set.
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	StoreKind  database.Kind
	Steps      []string
	Errors     []string
	Warnings   []string
	Status     Status
	// Observer is true when another process performed the work and this
	// run only waited and re-validated.
	Observer bool

	terminal bool
	degraded bool
}

// Terminal reports whether the run has reached its final status.
func (r *Run) Terminal() bool {
	return r.terminal
}

// Duration is the wall-clock length of the run, zero until terminal.
func (r *Run) Duration() time.Duration {
	if !r.terminal {
		return 0
	}

	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Run) recordStep(name string) {
	if r.terminal {
		return
	}

	r.Steps = append(r.Steps, name)
}

// warn records an informational warning that does not change status.
func (r *Run) warn(msg string) {
	if r.terminal {
		return
	}

	r.Warnings = append(r.Warnings, msg)
}

// degrade records a warning that caps the final status at degraded.
func (r *Run) degrade(msg string) {
	r.warn(msg)

	if !r.terminal {
		r.degraded = true
	}
}

func (r *Run) recordError(msg string) {
	if r.terminal {
		return
	}

	r.Errors = append(r.Errors, msg)
}

// finish sets the terminal status exactly once.
func (r *Run) finish(status Status) {
	if r.terminal {
		return
	}

	r.Status = status
	r.FinishedAt = time.Now().UTC()
	r.terminal = true
}
