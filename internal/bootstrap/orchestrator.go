// Package bootstrap runs the initialization pipeline that brings a
// relational store from an unknown state to a verified ready state:
// connectivity, exclusive claim, schema, migrations, seed data, and a
// final health validation.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aqasim81/store-bootstrap/internal/catalog"
	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/health"
	"github.com/aqasim81/store-bootstrap/internal/ledger"
	"github.com/aqasim81/store-bootstrap/internal/migrate"
	"github.com/aqasim81/store-bootstrap/internal/schema"
	"github.com/aqasim81/store-bootstrap/internal/scope"
	"github.com/aqasim81/store-bootstrap/internal/seed"
)

// Default claim timings. The lease bounds how long a crashed holder can
// block others; the wait bounds how long a non-holder queues behind the
// active one before falling back to observing.
const (
	DefaultClaimLease   = 2 * time.Minute
	DefaultClaimWait    = 30 * time.Second
	DefaultClaimBackoff = 250 * time.Millisecond

	connectAttempts = 3
	connectTimeout  = 5 * time.Second
)

// Orchestrator owns the bootstrap pipeline over one open store.
type Orchestrator struct {
	store     *database.Store
	scopes    *scope.Manager
	schemas   *schema.Manager
	ledger    *ledger.Ledger
	runner    *migrate.Runner
	seeder    *seed.Seeder
	validator *health.Validator
	logger    *slog.Logger

	holder           string
	claimLease       time.Duration
	claimWait        time.Duration
	claimBackoff     time.Duration
	statementTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger for pipeline progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithHolder sets the claim holder identity. Defaults to a random UUID
// per orchestrator.
func WithHolder(holder string) Option {
	return func(o *Orchestrator) {
		o.holder = holder
	}
}

// WithClaimLease bounds how long this process may hold the claim before
// a stale-claim takeover becomes possible.
func WithClaimLease(lease time.Duration) Option {
	return func(o *Orchestrator) {
		o.claimLease = lease
	}
}

// WithClaimWait bounds how long a non-holder waits for the claim.
func WithClaimWait(wait time.Duration) Option {
	return func(o *Orchestrator) {
		o.claimWait = wait
	}
}

// WithClaimBackoff sets the delay between claim acquisition attempts.
func WithClaimBackoff(backoff time.Duration) Option {
	return func(o *Orchestrator) {
		o.claimBackoff = backoff
	}
}

// WithStatementTimeout bounds each migration statement.
func WithStatementTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.statementTimeout = d
	}
}

// New wires the full pipeline over an open store and migration catalog.
func New(store *database.Store, cat catalog.Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		logger:       slog.Default(),
		holder:       uuid.NewString(),
		claimLease:   DefaultClaimLease,
		claimWait:    DefaultClaimWait,
		claimBackoff: DefaultClaimBackoff,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.scopes = scope.NewManager(store.DB, scope.WithOrigin(scope.OriginOrchestrator))
	o.schemas = schema.NewManager(o.scopes, store.Dialect)
	o.ledger = ledger.New(o.scopes, store.Dialect)

	runnerOpts := []migrate.Option{}
	if o.statementTimeout > 0 {
		runnerOpts = append(runnerOpts, migrate.WithStatementTimeout(o.statementTimeout))
	}

	o.runner = migrate.NewRunner(o.scopes, o.ledger, cat, runnerOpts...)
	o.seeder = seed.New(o.scopes, store.Dialect)
	o.validator = health.New(store, o.scopes, o.schemas, o.runner)

	return o
}

// Run executes the pipeline once. The returned result is terminal; err
// is non-nil only when the run ended in the failed status, wrapping the
// fatal cause under ErrRunFailed.
func (o *Orchestrator) Run(ctx context.Context) (*Run, error) {
	run := &Run{
		StartedAt: time.Now().UTC(),
		StoreKind: o.store.Kind,
	}

	o.logger.Info("bootstrap starting", "store_kind", o.store.Kind.String(), "holder", o.holder)

	if err := o.checkConnectivity(ctx, run); err != nil {
		return o.fail(run, StepConnectivityCheck, err)
	}

	claim, err := o.acquireClaim(ctx, run)
	if err != nil {
		if errors.Is(err, ErrClaimWaitExceeded) {
			return o.observe(ctx, run)
		}

		return o.fail(run, StepClaimAcquire, err)
	}

	defer func() {
		if releaseErr := claim.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			o.logger.Warn("releasing bootstrap claim", "error", releaseErr)
		}
	}()

	if err := o.ensureSchema(ctx, run); err != nil {
		return o.fail(run, StepSchemaCreate, err)
	}

	if err := o.ensureMigrations(ctx, run); err != nil {
		return o.fail(run, StepMigrationApply, err)
	}

	if err := o.ensureSeedData(ctx, run); err != nil {
		return o.fail(run, StepSeed, err)
	}

	return o.validateAndFinish(ctx, run)
}

// checkConnectivity probes the store with a fixed number of bounded
// attempts; there is no open-ended retry loop.
func (o *Orchestrator) checkConnectivity(ctx context.Context, run *Run) error {
	var lastErr error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		lastErr = o.store.Ping(ctx, connectTimeout)
		if lastErr == nil {
			run.recordStep(StepConnectivityCheck)

			return nil
		}

		o.logger.Warn("connectivity check failed",
			"attempt", attempt, "max_attempts", connectAttempts, "error", lastErr)

		if attempt < connectAttempts {
			if err := sleepCtx(ctx, time.Duration(attempt)*time.Second); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w: %w", database.ErrConnectionFailed, lastErr)
}

// acquireClaim retries until the exclusive claim is held or the wait
// budget runs out. ErrClaimWaitExceeded selects the observer fallback.
func (o *Orchestrator) acquireClaim(ctx context.Context, run *Run) (database.Claim, error) {
	deadline := time.Now().Add(o.claimWait)

	for {
		claim, err := o.store.Dialect.TryClaim(ctx, o.store.DB, o.holder, o.claimLease)
		if err == nil {
			run.recordStep(StepClaimAcquire)

			return claim, nil
		}

		if !errors.Is(err, database.ErrClaimNotAcquired) {
			return nil, fmt.Errorf("acquiring bootstrap claim: %w", err)
		}

		if time.Now().After(deadline) {
			return nil, ErrClaimWaitExceeded
		}

		o.logger.Debug("bootstrap claim held elsewhere, waiting", "backoff", o.claimBackoff)

		if err := sleepCtx(ctx, o.claimBackoff); err != nil {
			return nil, err
		}
	}
}

// observe handles the non-holder path: another process did the work, so
// this run only re-validates the outcome.
func (o *Orchestrator) observe(ctx context.Context, run *Run) (*Run, error) {
	run.Observer = true
	run.warn("another process held the bootstrap claim; observed its result instead of initializing")

	o.logger.Info("observing bootstrap performed by another process")

	return o.validateAndFinish(ctx, run)
}

func (o *Orchestrator) ensureSchema(ctx context.Context, run *Run) error {
	state, err := o.schemas.CheckExists(ctx)
	if err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}

	run.recordStep(StepSchemaCheck)

	if state.Satisfied() {
		o.logger.Info("schema already satisfied", "tables", len(state.Expected))

		return nil
	}

	result, err := o.schemas.Create(ctx)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for _, warning := range result.Warnings {
		run.degrade(warning)
	}

	run.recordStep(StepSchemaCreate)

	o.logger.Info("schema created",
		"tables", len(result.TablesCreated), "indexes", len(result.IndexesCreated))

	return nil
}

func (o *Orchestrator) ensureMigrations(ctx context.Context, run *Run) error {
	if err := o.ledger.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensuring migration ledger: %w", err)
	}

	pending, err := o.runner.Pending(ctx)
	if err != nil {
		return fmt.Errorf("checking pending migrations: %w", err)
	}

	run.recordStep(StepMigrationCheck)

	if len(pending) == 0 {
		o.logger.Info("migrations already applied")

		return nil
	}

	result, err := o.runner.Apply(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	run.recordStep(StepMigrationApply)

	o.logger.Info("migrations applied",
		"applied", len(result.Applied), "skipped", len(result.Skipped))

	return nil
}

// ensureSeedData runs the seeding pass. A failure is fatal only when
// the administrator account does not exist afterwards.
func (o *Orchestrator) ensureSeedData(ctx context.Context, run *Run) error {
	result, err := o.seeder.Seed(ctx)
	if err != nil {
		exists, existsErr := o.seeder.AdminExists(ctx)
		if existsErr == nil && exists {
			run.degrade(fmt.Sprintf("seeding pass failed but the administrator account exists: %v", err))

			return nil
		}

		return fmt.Errorf("seeding baseline data: %w", err)
	}

	for _, warning := range result.Warnings {
		run.warn(warning)
	}

	run.recordStep(StepSeed)

	o.logger.Info("seed data ensured",
		"created", len(result.Created), "skipped", len(result.Skipped))

	return nil
}

// validateAndFinish runs the health report and maps its severity to the
// terminal status: blocking findings fail the run, advisory ones
// degrade it.
func (o *Orchestrator) validateAndFinish(ctx context.Context, run *Run) (*Run, error) {
	report, err := o.validator.Report(ctx)
	if err != nil {
		return o.fail(run, StepHealthValidate, err)
	}

	run.recordStep(StepHealthValidate)

	for _, finding := range report.Schema.Findings {
		if finding.Severity >= schema.Warning {
			run.degrade(finding.Message)
		}
	}

	for _, finding := range report.Data.Findings {
		if finding.Severity >= schema.Warning {
			run.degrade(finding.Message)
		}
	}

	if report.HasCritical() {
		return o.fail(run, StepHealthValidate,
			fmt.Errorf("health validation found blocking issues (overall %s)", report.Overall))
	}

	status := StatusReady
	if run.degraded {
		status = StatusDegraded
	}

	run.finish(status)

	o.logger.Info("bootstrap finished",
		"status", string(run.Status), "steps", len(run.Steps), "warnings", len(run.Warnings))

	return run, nil
}

func (o *Orchestrator) fail(run *Run, step string, err error) (*Run, error) {
	run.recordError(fmt.Sprintf("%s: %v", step, err))
	run.finish(StatusFailed)

	o.logger.Error("bootstrap failed", "step", step, "error", err)

	return run, fmt.Errorf("%w: %s: %w", ErrRunFailed, step, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
