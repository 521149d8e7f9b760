package catalog

import (
	"github.com/aqasim81/store-bootstrap/internal/schema"
)

// Builtin returns the baseline migration catalog. The create statements
// are shared with the schema manifest so the two can never drift; every
// statement is idempotent, which lets the runner re-apply the baseline
// against a store whose tables exist but whose ledger was lost.
func Builtin() Catalog {
	migrations := []Migration{
		builtinMigration("001", "create_tenants",
			schema.CreateTenantsSQL+";\n"+
				"CREATE UNIQUE INDEX IF NOT EXISTS idx_tenants_name ON tenants (name)",
			"DROP INDEX IF EXISTS idx_tenants_name;\nDROP TABLE IF EXISTS tenants",
		),
		builtinMigration("002", "create_roles",
			schema.CreateRolesSQL+";\n"+
				"CREATE UNIQUE INDEX IF NOT EXISTS idx_roles_tenant_name ON roles (tenant_id, name)",
			"DROP INDEX IF EXISTS idx_roles_tenant_name;\nDROP TABLE IF EXISTS roles",
		),
		builtinMigration("003", "create_users",
			schema.CreateUsersSQL+";\n"+
				"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (email);\n"+
				"CREATE INDEX IF NOT EXISTS idx_users_tenant ON users (tenant_id)",
			"DROP INDEX IF EXISTS idx_users_tenant;\nDROP INDEX IF EXISTS idx_users_email;\nDROP TABLE IF EXISTS users",
		),
		builtinMigration("004", "add_user_last_login",
			"ALTER TABLE users ADD COLUMN last_login TIMESTAMP",
			"ALTER TABLE users DROP COLUMN last_login",
		),
	}

	c, err := New(migrations...)
	if err != nil {
		// Unreachable: the builtin set is fixed and duplicate-free.
		panic(err)
	}

	return c
}

func builtinMigration(version, name, up, down string) Migration {
	return Migration{
		Version:  version,
		Name:     name,
		UpSQL:    up,
		DownSQL:  down,
		Checksum: ComputeChecksum(up),
		Source:   SourceBuiltin,
	}
}
