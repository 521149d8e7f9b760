// Package health diagnoses a bootstrapped store: connectivity, schema
// structure, baseline data consistency, and migration ledger integrity,
// aggregated into a severity-graded diagnostic report.
package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/migrate"
	"github.com/aqasim81/store-bootstrap/internal/schema"
	"github.com/aqasim81/store-bootstrap/internal/scope"
	"github.com/aqasim81/store-bootstrap/internal/seed"
)

// DefaultPingTimeout bounds the connectivity probe so a dead server
// degrades the report instead of hanging it.
const DefaultPingTimeout = 3 * time.Second

// Validator runs the individual health checks and assembles reports.
type Validator struct {
	store       *database.Store
	scopes      *scope.Manager
	schemas     *schema.Manager
	runner      *migrate.Runner
	pingTimeout time.Duration
}

// Option configures a Validator.
type Option func(*Validator)

// WithPingTimeout overrides the connectivity probe timeout.
func WithPingTimeout(timeout time.Duration) Option {
	return func(v *Validator) {
		v.pingTimeout = timeout
	}
}

// New creates a Validator over an open store.
func New(store *database.Store, scopes *scope.Manager, schemas *schema.Manager, runner *migrate.Runner, opts ...Option) *Validator {
	v := &Validator{
		store:       store,
		scopes:      scopes,
		schemas:     schemas,
		runner:      runner,
		pingTimeout: DefaultPingTimeout,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// ValidateConnectivity probes the store within the configured timeout.
// A timeout counts as unreachable; it never aborts the caller.
func (v *Validator) ValidateConnectivity(ctx context.Context) bool {
	return v.store.Ping(ctx, v.pingTimeout) == nil
}

// ValidateSchema checks observed structure against the expected manifest.
func (v *Validator) ValidateSchema(ctx context.Context) (schema.ValidationReport, error) {
	return v.schemas.Validate(ctx)
}

// ValidateData confirms the baseline records exist and reference each
// other consistently: the system tenant, its roles, and an administrator
// whose role reference resolves to the administrator role.
func (v *Validator) ValidateData(ctx context.Context) (schema.ValidationReport, error) {
	var report schema.ValidationReport

	err := v.scopes.WithScope(ctx, func(ctx context.Context, sc *scope.Scope) error {
		tenantID, err := v.lookupTenant(ctx, sc, &report)
		if err != nil {
			return err
		}

		if tenantID != "" {
			if err := v.checkRoles(ctx, sc, tenantID, &report); err != nil {
				return err
			}
		}

		return v.checkAdmin(ctx, sc, &report)
	})
	if err != nil {
		return report, fmt.Errorf("validating baseline data: %w", err)
	}

	return report, nil
}

// Report runs every check and aggregates the findings. The overall
// severity is the maximum across connectivity, schema, data, and the
// migration ledger checksum verification.
func (v *Validator) Report(ctx context.Context) (DiagnosticReport, error) {
	report := DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		StoreKind:   v.store.Kind,
	}

	report.Connectivity = v.ValidateConnectivity(ctx)
	if !report.Connectivity {
		report.Overall = schema.Critical

		return report, nil
	}

	schemaReport, err := v.ValidateSchema(ctx)
	if err != nil {
		return report, fmt.Errorf("schema validation: %w", err)
	}

	report.Schema = schemaReport

	// With required tables missing, the data and ledger checks would
	// only fail on absent relations; the report is already blocking.
	if schemaReport.HasBlocking() {
		report.Overall = schema.Critical

		return report, nil
	}

	dataReport, err := v.ValidateData(ctx)
	if err != nil {
		return report, fmt.Errorf("data validation: %w", err)
	}

	report.Data = dataReport

	mismatched, err := v.runner.VerifyChecksums(ctx)
	if err != nil {
		return report, fmt.Errorf("ledger verification: %w", err)
	}

	report.ChecksumMismatches = mismatched

	report.Overall = report.Schema.MaxSeverity
	if report.Data.MaxSeverity > report.Overall {
		report.Overall = report.Data.MaxSeverity
	}

	if len(report.ChecksumMismatches) > 0 && report.Overall < schema.Critical {
		report.Overall = schema.Critical
	}

	return report, nil
}

func (v *Validator) lookupTenant(ctx context.Context, sc *scope.Scope, report *schema.ValidationReport) (string, error) {
	var tenantID string

	query := v.store.Dialect.Rebind(`SELECT id FROM tenants WHERE name = ?`)

	err := sc.QueryRowContext(ctx, query, seed.SystemTenantName).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		report.Add(schema.Finding{
			Severity: schema.Critical,
			Table:    "tenants",
			Message:  "system tenant missing",
		})

		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("looking up system tenant: %w", err)
	}

	return tenantID, nil
}

func (v *Validator) checkRoles(ctx context.Context, sc *scope.Scope, tenantID string, report *schema.ValidationReport) error {
	checks := []struct {
		name     string
		severity schema.Severity
	}{
		{seed.AdminRoleName, schema.Critical},
		{seed.MemberRoleName, schema.Warning},
	}

	for _, check := range checks {
		var exists bool

		query := v.store.Dialect.Rebind(`SELECT EXISTS(SELECT 1 FROM roles WHERE tenant_id = ? AND name = ?)`)

		if err := sc.QueryRowContext(ctx, query, tenantID, check.name).Scan(&exists); err != nil {
			return fmt.Errorf("looking up role %s: %w", check.name, err)
		}

		if !exists {
			report.Add(schema.Finding{
				Severity: check.severity,
				Table:    "roles",
				Object:   check.name,
				Message:  "system role missing",
			})
		}
	}

	return nil
}

func (v *Validator) checkAdmin(ctx context.Context, sc *scope.Scope, report *schema.ValidationReport) error {
	var roleName sql.NullString

	query := v.store.Dialect.Rebind(
		`SELECT r.name FROM users u LEFT JOIN roles r ON r.id = u.role_id WHERE u.email = ?`)

	err := sc.QueryRowContext(ctx, query, seed.AdminEmail).Scan(&roleName)
	if errors.Is(err, sql.ErrNoRows) {
		report.Add(schema.Finding{
			Severity: schema.Critical,
			Table:    "users",
			Object:   seed.AdminEmail,
			Message:  "administrator account missing",
		})

		return nil
	}

	if err != nil {
		return fmt.Errorf("looking up administrator account: %w", err)
	}

	switch {
	case !roleName.Valid:
		report.Add(schema.Finding{
			Severity: schema.Error,
			Table:    "users",
			Object:   seed.AdminEmail,
			Message:  "administrator role reference does not resolve",
		})
	case roleName.String != seed.AdminRoleName:
		report.Add(schema.Finding{
			Severity: schema.Error,
			Table:    "users",
			Object:   seed.AdminEmail,
			Message:  fmt.Sprintf("administrator holds role %q instead of %q", roleName.String, seed.AdminRoleName),
		})
	}

	return nil
}
