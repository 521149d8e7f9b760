package database

import "strings"

// Kind classifies the storage backend behind a connection string.
type Kind int

const (
	// KindUnknown indicates the connection string could not be classified.
	KindUnknown Kind = iota
	// KindEmbeddedFile indicates a file-backed embedded store (SQLite).
	KindEmbeddedFile
	// KindNetworkedServer indicates a networked database server (PostgreSQL).
	KindNetworkedServer
)

// String returns the lowercase label for the store kind.
func (k Kind) String() string {
	switch k {
	case KindEmbeddedFile:
		return "embedded-file"
	case KindNetworkedServer:
		return "networked-server"
	default:
		return "unknown"
	}
}

// DetectKind classifies a connection string by its scheme. Postgres URLs
// are networked servers; sqlite URLs and bare filesystem paths are
// embedded files. An empty string is unknown.
func DetectKind(dsn string) Kind {
	switch {
	case dsn == "":
		return KindUnknown
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return KindNetworkedServer
	case strings.HasPrefix(dsn, "sqlite://"), strings.HasPrefix(dsn, "file:"):
		return KindEmbeddedFile
	case strings.Contains(dsn, "://"):
		return KindUnknown
	default:
		// A bare path such as ./bootstrap.db or :memory:.
		return KindEmbeddedFile
	}
}
