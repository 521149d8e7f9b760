// Package schema detects, creates, validates, and repairs the expected
// table structures. All detection is a diff between an embedded manifest
// and the live catalog; creation is restricted to idempotent
// create-if-absent statements, and repair to non-destructive actions.
package schema

import (
	"context"
	"fmt"

	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/scope"
)

// internalTables are bookkeeping tables that may legitimately exist
// without appearing in the manifest.
var internalTables = map[string]bool{ //nolint:gochecknoglobals // fixed lookup set
	"bootstrap_claim": true,
}

// Manager implements schema detection, creation, validation, and repair.
// Every store access runs inside a bound execution scope.
type Manager struct {
	scopes   *scope.Manager
	dialect  database.Dialect
	manifest Manifest
}

// Option configures a Manager.
type Option func(*Manager)

// WithManifest substitutes an externally supplied expected-schema manifest.
func WithManifest(m Manifest) Option {
	return func(mgr *Manager) { mgr.manifest = m }
}

// NewManager creates a schema Manager for the given scope manager and dialect.
func NewManager(scopes *scope.Manager, dialect database.Dialect, opts ...Option) *Manager {
	mgr := &Manager{scopes: scopes, dialect: dialect, manifest: Default()}

	for _, opt := range opts {
		opt(mgr)
	}

	return mgr
}

// Manifest returns the expected-schema manifest in use.
func (m *Manager) Manifest() Manifest { return m.manifest }

// CheckExists enumerates observed tables and columns and diffs them
// against the manifest.
func (m *Manager) CheckExists(ctx context.Context) (State, error) {
	var st State

	err := m.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		observed, err := m.dialect.TableNames(ctx, s)
		if err != nil {
			return err
		}

		st = State{Expected: m.manifest.TableNames(), Observed: observed}

		present := make(map[string]bool, len(observed))
		for _, name := range observed {
			present[name] = true

			if _, expected := m.manifest.Table(name); !expected && !internalTables[name] {
				st.Extra = append(st.Extra, name)
			}
		}

		for _, spec := range m.manifest.Tables {
			if !present[spec.Name] {
				st.Missing = append(st.Missing, spec.Name)
				continue
			}

			ok, err := m.tableStructureValid(ctx, s, spec)
			if err != nil {
				return err
			}

			if !ok {
				st.Invalid = append(st.Invalid, spec.Name)
			}
		}

		return nil
	})
	if err != nil {
		return State{}, fmt.Errorf("checking schema state: %w", err)
	}

	return st, nil
}

// Create issues create-if-absent statements for every manifest table and
// index. Pre-existing objects are left untouched. Failing to create a
// required table is fatal; a failed index is recorded as a warning.
func (m *Manager) Create(ctx context.Context) (CreateResult, error) {
	var result CreateResult

	err := m.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		observed, err := m.dialect.TableNames(ctx, s)
		if err != nil {
			return err
		}

		present := make(map[string]bool, len(observed))
		for _, name := range observed {
			present[name] = true
		}

		for _, spec := range m.manifest.Tables {
			if present[spec.Name] {
				result.Skipped = append(result.Skipped, spec.Name)
				continue
			}

			if _, err := s.ExecContext(ctx, spec.CreateSQL); err != nil {
				if spec.Required {
					return fmt.Errorf("%w: %s: %w", ErrRequiredTableCreation, spec.Name, err)
				}

				result.Warnings = append(result.Warnings,
					fmt.Sprintf("creating optional table %s: %v", spec.Name, err))

				continue
			}

			result.TablesCreated = append(result.TablesCreated, spec.Name)
		}

		for _, spec := range m.manifest.Tables {
			for _, idx := range spec.Indexes {
				if _, err := s.ExecContext(ctx, CreateIndexSQL(idx)); err != nil {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("creating index %s: %v", idx.Name, err))

					continue
				}

				result.IndexesCreated = append(result.IndexesCreated, idx.Name)
			}
		}

		return nil
	})
	if err != nil {
		return result, err
	}

	return result, nil
}

// Validate checks every expected table's column set and indexes and
// reports per-object findings graded by severity.
func (m *Manager) Validate(ctx context.Context) (ValidationReport, error) {
	var report ValidationReport

	err := m.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		observed, err := m.dialect.TableNames(ctx, s)
		if err != nil {
			return err
		}

		present := make(map[string]bool, len(observed))
		for _, name := range observed {
			present[name] = true

			if _, expected := m.manifest.Table(name); !expected && !internalTables[name] {
				report.Add(Finding{
					Severity: Info,
					Table:    name,
					Message:  "table not in expected schema",
				})
			}
		}

		for _, spec := range m.manifest.Tables {
			if !present[spec.Name] {
				severity := Warning
				if spec.Required {
					severity = Critical
				}

				report.Add(Finding{
					Severity: severity,
					Table:    spec.Name,
					Message:  msgTableMissing,
				})

				continue
			}

			if err := m.validateTable(ctx, s, spec, &report); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return ValidationReport{}, fmt.Errorf("validating schema: %w", err)
	}

	return report, nil
}

// Repair attempts non-destructive fixes for validation findings:
// creating a missing table or index, adding a nullable column.
// Everything else becomes a manual action.
func (m *Manager) Repair(ctx context.Context) (RepairResult, error) {
	report, err := m.Validate(ctx)
	if err != nil {
		return RepairResult{}, err
	}

	var result RepairResult

	err = m.scopes.WithScope(ctx, func(ctx context.Context, s *scope.Scope) error {
		for _, f := range report.Findings {
			action, repairErr := m.repairFinding(ctx, s, f)
			if repairErr != nil {
				return repairErr
			}

			switch action {
			case repairDone:
				result.Repaired = append(result.Repaired, describeFinding(f))
			case repairManual:
				result.ManualActions = append(result.ManualActions, describeFinding(f))
			case repairNothing:
			}
		}

		return nil
	})
	if err != nil {
		return result, fmt.Errorf("repairing schema: %w", err)
	}

	return result, nil
}

type repairAction int

const (
	repairNothing repairAction = iota
	repairDone
	repairManual
)

// repairFinding applies one non-destructive fix, or classifies the
// finding as manual work.
func (m *Manager) repairFinding(ctx context.Context, s *scope.Scope, f Finding) (repairAction, error) {
	spec, known := m.manifest.Table(f.Table)
	if !known {
		return repairNothing, nil
	}

	switch f.Message {
	case msgTableMissing:
		if _, err := s.ExecContext(ctx, spec.CreateSQL); err != nil {
			return repairNothing, fmt.Errorf("recreating table %s: %w", spec.Name, err)
		}

		return repairDone, nil

	case msgIndexMissing:
		for _, idx := range spec.Indexes {
			if idx.Name != f.Object {
				continue
			}

			if _, err := s.ExecContext(ctx, CreateIndexSQL(idx)); err != nil {
				return repairNothing, fmt.Errorf("recreating index %s: %w", idx.Name, err)
			}

			return repairDone, nil
		}

		return repairNothing, nil

	case msgColumnMissing:
		for _, col := range spec.Columns {
			if col.Name != f.Object {
				continue
			}

			if !col.Nullable {
				// Adding a NOT NULL column to a populated table is a
				// rewrite; left to the operator.
				return repairManual, nil
			}

			ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", spec.Name, col.Name, col.Type)
			if _, err := s.ExecContext(ctx, ddl); err != nil {
				return repairNothing, fmt.Errorf("adding column %s.%s: %w", spec.Name, col.Name, err)
			}

			return repairDone, nil
		}

		return repairNothing, nil

	case msgColumnTypeMismatch:
		return repairManual, nil

	default:
		return repairNothing, nil
	}
}

// Finding messages double as repair dispatch keys.
const (
	msgTableMissing       = "expected table missing"
	msgColumnMissing      = "expected column missing"
	msgColumnTypeMismatch = "column type does not match expected family"
	msgIndexMissing       = "expected index missing"
)

// validateTable adds findings for one present table.
func (m *Manager) validateTable(ctx context.Context, s *scope.Scope, spec TableSpec, report *ValidationReport) error {
	cols, err := m.dialect.TableColumns(ctx, s, spec.Name)
	if err != nil {
		return err
	}

	byName := make(map[string]database.Column, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}

	for _, want := range spec.Columns {
		got, ok := byName[want.Name]
		if !ok {
			severity := Warning
			if want.Required {
				severity = Error
			}

			report.Add(Finding{Severity: severity, Table: spec.Name, Object: want.Name, Message: msgColumnMissing})

			continue
		}

		if typeFamily(got.Type) != want.Type {
			report.Add(Finding{Severity: Error, Table: spec.Name, Object: want.Name, Message: msgColumnTypeMismatch})
		}
	}

	if len(spec.Indexes) == 0 {
		return nil
	}

	indexes, err := m.dialect.IndexNames(ctx, s, spec.Name)
	if err != nil {
		return err
	}

	haveIdx := make(map[string]bool, len(indexes))
	for _, name := range indexes {
		haveIdx[name] = true
	}

	for _, idx := range spec.Indexes {
		if haveIdx[idx.Name] {
			continue
		}

		severity := Warning
		if idx.Critical {
			severity = Error
		}

		report.Add(Finding{Severity: severity, Table: spec.Name, Object: idx.Name, Message: msgIndexMissing})
	}

	return nil
}

// tableStructureValid reports whether a present table has every required
// column with a matching type family.
func (m *Manager) tableStructureValid(ctx context.Context, s *scope.Scope, spec TableSpec) (bool, error) {
	cols, err := m.dialect.TableColumns(ctx, s, spec.Name)
	if err != nil {
		return false, err
	}

	byName := make(map[string]database.Column, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}

	for _, want := range spec.Columns {
		if !want.Required {
			continue
		}

		got, ok := byName[want.Name]
		if !ok || typeFamily(got.Type) != want.Type {
			return false, nil
		}
	}

	return true, nil
}

func describeFinding(f Finding) string {
	if f.Object == "" {
		return f.Table + ": " + f.Message
	}

	return f.Table + "." + f.Object + ": " + f.Message
}
