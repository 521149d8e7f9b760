package schema

import "strings"

// ColumnSpec describes one expected column.
type ColumnSpec struct {
	Name     string
	Type     string // canonical family: TEXT, INTEGER, TIMESTAMP
	Nullable bool
	Required bool // absence is an Error rather than a Warning
}

// IndexSpec describes one expected index.
type IndexSpec struct {
	Name     string
	Table    string
	Columns  []string
	Unique   bool
	Critical bool // absence is an Error rather than a Warning
}

// TableSpec describes one expected table, including the idempotent DDL
// used to create it when absent.
type TableSpec struct {
	Name      string
	Required  bool
	Columns   []ColumnSpec
	Indexes   []IndexSpec
	CreateSQL string
}

// Manifest is the fixed expected-schema description the Schema Manager
// diffs observed state against.
type Manifest struct {
	Tables []TableSpec
}

// Table returns the spec for the named table.
func (m Manifest) Table(name string) (TableSpec, bool) {
	for _, t := range m.Tables {
		if t.Name == name {
			return t, true
		}
	}

	return TableSpec{}, false
}

// TableNames returns expected table names in manifest order.
func (m Manifest) TableNames() []string {
	names := make([]string, 0, len(m.Tables))
	for _, t := range m.Tables {
		names = append(names, t.Name)
	}

	return names
}

// Baseline table DDL. Statements are idempotent and restricted to the
// type vocabulary both supported backends accept. Uniqueness lives in
// explicit unique indexes so the seeder's create-if-absent checks have a
// stable constraint to lean on.
const (
	CreateTenantsSQL = `CREATE TABLE IF NOT EXISTS tenants (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL
)`

	CreateRolesSQL = `CREATE TABLE IF NOT EXISTS roles (
    id          TEXT PRIMARY KEY,
    tenant_id   TEXT NOT NULL REFERENCES tenants(id),
    name        TEXT NOT NULL,
    description TEXT,
    created_at  TIMESTAMP NOT NULL
)`

	CreateUsersSQL = `CREATE TABLE IF NOT EXISTS users (
    id             TEXT PRIMARY KEY,
    tenant_id      TEXT NOT NULL REFERENCES tenants(id),
    role_id        TEXT NOT NULL REFERENCES roles(id),
    email          TEXT NOT NULL,
    display_name   TEXT,
    password_hash  TEXT NOT NULL,
    created_at     TIMESTAMP NOT NULL
)`

	CreateLedgerSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version      TEXT PRIMARY KEY,
    description  TEXT NOT NULL,
    checksum     TEXT NOT NULL,
    applied_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
)

// Default returns the built-in expected-schema manifest covering the
// baseline business tables and the migration ledger.
func Default() Manifest {
	return Manifest{Tables: []TableSpec{
		{
			Name:     "tenants",
			Required: true,
			Columns: []ColumnSpec{
				{Name: "id", Type: "TEXT", Required: true},
				{Name: "name", Type: "TEXT", Required: true},
				{Name: "created_at", Type: "TIMESTAMP", Required: true},
			},
			Indexes: []IndexSpec{
				{Name: "idx_tenants_name", Table: "tenants", Columns: []string{"name"}, Unique: true, Critical: true},
			},
			CreateSQL: CreateTenantsSQL,
		},
		{
			Name:     "roles",
			Required: true,
			Columns: []ColumnSpec{
				{Name: "id", Type: "TEXT", Required: true},
				{Name: "tenant_id", Type: "TEXT", Required: true},
				{Name: "name", Type: "TEXT", Required: true},
				{Name: "description", Type: "TEXT", Nullable: true},
				{Name: "created_at", Type: "TIMESTAMP", Required: true},
			},
			Indexes: []IndexSpec{
				{Name: "idx_roles_tenant_name", Table: "roles", Columns: []string{"tenant_id", "name"}, Unique: true, Critical: true},
			},
			CreateSQL: CreateRolesSQL,
		},
		{
			Name:     "users",
			Required: true,
			Columns: []ColumnSpec{
				{Name: "id", Type: "TEXT", Required: true},
				{Name: "tenant_id", Type: "TEXT", Required: true},
				{Name: "role_id", Type: "TEXT", Required: true},
				{Name: "email", Type: "TEXT", Required: true},
				{Name: "display_name", Type: "TEXT", Nullable: true},
				{Name: "password_hash", Type: "TEXT", Required: true},
				{Name: "created_at", Type: "TIMESTAMP", Required: true},
			},
			Indexes: []IndexSpec{
				{Name: "idx_users_email", Table: "users", Columns: []string{"email"}, Unique: true, Critical: true},
				{Name: "idx_users_tenant", Table: "users", Columns: []string{"tenant_id"}},
			},
			CreateSQL: CreateUsersSQL,
		},
		{
			Name:     "schema_migrations",
			Required: true,
			Columns: []ColumnSpec{
				{Name: "version", Type: "TEXT", Required: true},
				{Name: "description", Type: "TEXT", Required: true},
				{Name: "checksum", Type: "TEXT", Required: true},
				{Name: "applied_at", Type: "TIMESTAMP", Required: true},
			},
			CreateSQL: CreateLedgerSQL,
		},
	}}
}

// CreateIndexSQL renders the idempotent DDL for an index spec.
func CreateIndexSQL(idx IndexSpec) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}

	return "CREATE " + unique + "INDEX IF NOT EXISTS " + idx.Name +
		" ON " + idx.Table + " (" + strings.Join(idx.Columns, ", ") + ")"
}

// typeFamily canonicalizes an observed column type into the manifest's
// type vocabulary so both backends validate against one description.
func typeFamily(observed string) string {
	t := strings.ToLower(strings.TrimSpace(observed))

	switch {
	case strings.Contains(t, "char"), t == "text", t == "clob", t == "uuid":
		return "TEXT"
	case strings.Contains(t, "int"), t == "serial", t == "bigserial":
		return "INTEGER"
	case strings.Contains(t, "timestamp"), t == "datetime", t == "date":
		return "TIMESTAMP"
	case t == "boolean", t == "bool":
		return "INTEGER"
	default:
		return strings.ToUpper(t)
	}
}
