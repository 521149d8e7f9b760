package catalog

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// SafetyFinding flags a destructive statement in a forward migration.
// Dropping or truncating objects belongs in an operator-confirmed reset,
// not in an automatic bootstrap run.
type SafetyFinding struct {
	Version   string
	Name      string
	Statement string // statement kind, e.g. "DROP TABLE"
}

func (f SafetyFinding) String() string {
	return fmt.Sprintf("migration %s_%s contains %s", f.Version, f.Name, f.Statement)
}

// ScanDestructive parses every forward migration with the PostgreSQL
// parser and reports destructive statements. SQL the parser cannot
// understand is reported as a parse finding rather than silently passed.
func ScanDestructive(c Catalog) []SafetyFinding {
	var findings []SafetyFinding

	for _, m := range c.All() {
		findings = append(findings, scanMigration(m)...)
	}

	return findings
}

func scanMigration(m Migration) []SafetyFinding {
	trimmed := strings.TrimSpace(m.UpSQL)
	if trimmed == "" {
		return nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return []SafetyFinding{{
			Version:   m.Version,
			Name:      m.Name,
			Statement: "unparseable SQL",
		}}
	}

	var findings []SafetyFinding

	for _, stmt := range tree.Stmts {
		kind := destructiveKind(stmt)
		if kind == "" {
			continue
		}

		findings = append(findings, SafetyFinding{
			Version:   m.Version,
			Name:      m.Name,
			Statement: kind,
		})
	}

	return findings
}

// destructiveKind classifies a statement node, returning "" for
// non-destructive statements.
func destructiveKind(stmt *pg_query.RawStmt) string {
	if stmt == nil || stmt.Stmt == nil {
		return ""
	}

	switch node := stmt.Stmt.Node.(type) {
	case *pg_query.Node_DropStmt:
		switch node.DropStmt.RemoveType {
		case pg_query.ObjectType_OBJECT_TABLE:
			return "DROP TABLE"
		case pg_query.ObjectType_OBJECT_INDEX:
			// Recreating an index is cheap; dropping one is not data loss.
			return ""
		default:
			return "DROP " + strings.TrimPrefix(node.DropStmt.RemoveType.String(), "OBJECT_")
		}
	case *pg_query.Node_TruncateStmt:
		return "TRUNCATE"
	case *pg_query.Node_AlterTableStmt:
		for _, cmd := range node.AlterTableStmt.Cmds {
			alter, ok := cmd.Node.(*pg_query.Node_AlterTableCmd)
			if !ok {
				continue
			}

			if alter.AlterTableCmd.Subtype == pg_query.AlterTableType_AT_DropColumn {
				return "ALTER TABLE DROP COLUMN"
			}
		}

		return ""
	default:
		return ""
	}
}
