// Package seed idempotently creates the baseline records that make the
// system usable out of the box: the system tenant, its roles, and the
// administrator account. Every entity is looked up by its natural key
// before creation, so re-running a seeding pass never duplicates.
package seed

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aqasim81/store-bootstrap/internal/database"
	"github.com/aqasim81/store-bootstrap/internal/scope"
)

// Well-known baseline identities. The administrator credential is a
// deliberate bootstrap convenience; every seeding pass that creates the
// account emits a rotation warning.
const (
	SystemTenantName     = "system"
	AdminRoleName        = "administrator"
	MemberRoleName       = "member"
	AdminEmail           = "admin@system.local"
	AdminDisplayName     = "System Administrator"
	DefaultAdminPassword = "bootstrap-me"
)

// Logical seed record keys reported in results.
const (
	KeySystemTenant = "system-tenant"
	KeyAdminRole    = "role-administrator"
	KeyMemberRole   = "role-member"
	KeyAdminUser    = "admin-user"
)

// rotationWarning is attached to every run that creates the administrator.
const rotationWarning = "administrator account created with the default credential; rotate it before serving traffic"

// Result reports one seeding pass. All writes commit together: on
// failure Created is empty and Attempted names how far the pass got.
type Result struct {
	Created   []string
	Skipped   []string
	Attempted []string
	Warnings  []string
	Committed bool
}

// Seeder creates baseline records through bound scopes.
type Seeder struct {
	scopes  *scope.Manager
	dialect database.Dialect
}

// New creates a Seeder for the given scope manager and dialect.
func New(scopes *scope.Manager, dialect database.Dialect) *Seeder {
	return &Seeder{scopes: scopes, dialect: dialect}
}

// Seed runs one seeding pass in a single transaction: system tenant,
// then system roles scoped to it, then the administrator account
// holding the highest-privilege role.
func (s *Seeder) Seed(ctx context.Context) (Result, error) {
	var result Result

	err := s.scopes.WithScope(ctx, func(ctx context.Context, sc *scope.Scope) error {
		// One transaction per pass; a retry after scope recovery starts
		// a fresh one.
		result = Result{}

		tx, err := sc.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning seed transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback of a committed tx is a no-op

		if err := s.seedAll(ctx, tx, &result); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing seed transaction: %w", err)
		}

		result.Committed = true

		return nil
	})
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrSeeding, err)
	}

	return result, nil
}

// AdminExists reports whether the administrator account is present.
// Used to decide whether a failed pass is fatal.
func (s *Seeder) AdminExists(ctx context.Context) (bool, error) {
	var exists bool

	err := s.scopes.WithScope(ctx, func(ctx context.Context, sc *scope.Scope) error {
		query := s.dialect.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`)

		return sc.QueryRowContext(ctx, query, AdminEmail).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("checking administrator account: %w", err)
	}

	return exists, nil
}

// seedAll performs the fixed-order pass inside one transaction.
func (s *Seeder) seedAll(ctx context.Context, tx *sql.Tx, result *Result) error {
	tenantID, err := s.seedTenant(ctx, tx, result)
	if err != nil {
		return err
	}

	adminRoleID, err := s.seedRole(ctx, tx, result, tenantID, AdminRoleName, KeyAdminRole,
		"full access to every tenant resource")
	if err != nil {
		return err
	}

	if _, err := s.seedRole(ctx, tx, result, tenantID, MemberRoleName, KeyMemberRole,
		"standard tenant membership"); err != nil {
		return err
	}

	return s.seedAdmin(ctx, tx, result, tenantID, adminRoleID)
}

func (s *Seeder) seedTenant(ctx context.Context, tx *sql.Tx, result *Result) (string, error) {
	result.Attempted = append(result.Attempted, KeySystemTenant)

	var id string

	query := s.dialect.Rebind(`SELECT id FROM tenants WHERE name = ?`)

	err := tx.QueryRowContext(ctx, query, SystemTenantName).Scan(&id)

	switch {
	case err == nil:
		result.Skipped = append(result.Skipped, KeySystemTenant)
		return id, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("looking up system tenant: %w", err)
	}

	id = uuid.NewString()
	insert := s.dialect.Rebind(`INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`)

	if _, err := tx.ExecContext(ctx, insert, id, SystemTenantName, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("creating system tenant: %w", err)
	}

	result.Created = append(result.Created, KeySystemTenant)

	return id, nil
}

func (s *Seeder) seedRole(
	ctx context.Context,
	tx *sql.Tx,
	result *Result,
	tenantID, name, key, description string,
) (string, error) {
	result.Attempted = append(result.Attempted, key)

	var id string

	query := s.dialect.Rebind(`SELECT id FROM roles WHERE tenant_id = ? AND name = ?`)

	err := tx.QueryRowContext(ctx, query, tenantID, name).Scan(&id)

	switch {
	case err == nil:
		result.Skipped = append(result.Skipped, key)
		return id, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("looking up role %s: %w", name, err)
	}

	id = uuid.NewString()
	insert := s.dialect.Rebind(
		`INSERT INTO roles (id, tenant_id, name, description, created_at) VALUES (?, ?, ?, ?, ?)`,
	)

	if _, err := tx.ExecContext(ctx, insert, id, tenantID, name, description, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("creating role %s: %w", name, err)
	}

	result.Created = append(result.Created, key)

	return id, nil
}

func (s *Seeder) seedAdmin(ctx context.Context, tx *sql.Tx, result *Result, tenantID, roleID string) error {
	result.Attempted = append(result.Attempted, KeyAdminUser)

	var id string

	query := s.dialect.Rebind(`SELECT id FROM users WHERE email = ?`)

	err := tx.QueryRowContext(ctx, query, AdminEmail).Scan(&id)

	switch {
	case err == nil:
		result.Skipped = append(result.Skipped, KeyAdminUser)
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("looking up administrator account: %w", err)
	}

	insert := s.dialect.Rebind(
		`INSERT INTO users (id, tenant_id, role_id, email, display_name, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)

	_, err = tx.ExecContext(ctx, insert,
		uuid.NewString(), tenantID, roleID, AdminEmail, AdminDisplayName,
		HashPassword(DefaultAdminPassword), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAdminCreation, err)
	}

	result.Created = append(result.Created, KeyAdminUser)
	result.Warnings = append(result.Warnings, rotationWarning)

	return nil
}

// HashPassword returns the stored form of a credential.
func HashPassword(password string) string {
	h := sha256.Sum256([]byte(password))

	return "sha256:" + hex.EncodeToString(h[:])
}
