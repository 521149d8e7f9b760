package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	_ "github.com/mattn/go-sqlite3"    // sqlite3 database/sql driver
)

const (
	defaultMaxConns    = 5
	defaultPingTimeout = 5 * time.Second
)

// Store bundles an open connection handle with the detected store kind
// and its dialect. It is the persistence collaborator every bootstrap
// component runs against.
type Store struct {
	DB      *sql.DB
	Kind    Kind
	Dialect Dialect

	dsn string
}

// Open classifies the connection string, opens the matching driver, and
// pings the store to verify connectivity.
func Open(ctx context.Context, dsn string) (*Store, error) {
	kind := DetectKind(dsn)

	var (
		driver  string
		source  string
		dialect Dialect
	)

	switch kind {
	case KindNetworkedServer:
		driver = "pgx"
		source = dsn
		dialect = postgresDialect{}
	case KindEmbeddedFile:
		driver = "sqlite3"
		source = sqliteSource(dsn)
		dialect = sqliteDialect{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDatabaseURL, dsn)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	db.SetMaxOpenConns(defaultMaxConns)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck,gosec // best-effort close on failed ping

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Store{DB: db, Kind: kind, Dialect: dialect, dsn: dsn}, nil
}

// DSN returns the original connection string.
func (s *Store) DSN() string { return s.dsn }

// Close closes the underlying connection handle.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}

	return s.DB.Close()
}

// Ping verifies the store is reachable within the given timeout.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.DB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return nil
}

// sqliteSource strips the sqlite URL scheme, enables foreign key
// enforcement (off by default in the driver), and sets a busy timeout
// so concurrent bootstrap processes queue instead of erroring.
func sqliteSource(dsn string) string {
	path := strings.TrimPrefix(dsn, "sqlite://")
	params := "_foreign_keys=on&_busy_timeout=5000"

	if strings.Contains(path, "?") {
		return path + "&" + params
	}

	return path + "?" + params
}
