package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite selects the pure-Go SQLite driver (modernc.org/sqlite).
	DriverSQLite = "sqlite"

	// DriverPgx selects the Postgres driver (github.com/jackc/pgx/v5/stdlib).
	DriverPgx = "pgx"
)

type Config struct {
	// Driver is DriverSQLite (default) or DriverPgx.
	Driver string

	// DSN is a local filesystem path (or file: URI, or :memory:) for SQLite,
	// or a postgres:// connection string for pgx.
	DSN string

	// Table is the catalog table name. Defaults to DefaultTable.
	Table string

	// Create allows opening a SQLite path that does not exist yet.
	// Read paths (submit, plan) leave this false so a typo does not
	// silently produce an empty catalog.
	Create bool
}

// Store is a database/sql backed catalog.
type Store struct {
	db     *sql.DB
	driver string
	table  string
}

// Open opens the catalog database described by cfg.
//
// Notes:
// - Local SQLite paths get their parent directory created when Create is set.
// - For local SQLite files, WAL and busy_timeout are applied for predictable CLI behavior.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = DriverSQLite
	}

	var dsn string
	var err error
	switch driver {
	case DriverSQLite:
		dsn, err = buildSQLiteDSN(cfg.DSN, cfg.Create)
	case DriverPgx:
		dsn = strings.TrimSpace(cfg.DSN)
		if dsn == "" {
			err = errors.New("catalog dsn is required for pgx driver")
		}
	default:
		err = fmt.Errorf("unsupported catalog driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	if driver == DriverSQLite {
		if err := configureLocalSQLite(ctx, db, dsn); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	s, err := NewStore(db, driver, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an already opened database.
func NewStore(db *sql.DB, driver, table string) (*Store, error) {
	if db == nil {
		return nil, errors.New("catalog connection is nil")
	}
	if strings.TrimSpace(table) == "" {
		table = DefaultTable
	}
	if err := checkIdentifier("table", table); err != nil {
		return nil, err
	}
	if driver == "" {
		driver = DriverSQLite
	}
	return &Store{db: db, driver: driver, table: table}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Table() string {
	return s.table
}

func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Close() error {
	return s.db.Close()
}

// placeholder returns the bind marker for the n-th (1-based) parameter.
func (s *Store) placeholder(n int) string {
	if s.driver == DriverPgx {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func buildSQLiteDSN(raw string, create bool) (string, error) {
	path := strings.TrimSpace(raw)
	if path == "" {
		return "", errors.New("catalog path is required")
	}
	if path == ":memory:" {
		return path, nil
	}

	if strings.HasPrefix(path, "file:") {
		localPath, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		if err := prepareCatalogPath(localPath, create); err != nil {
			return "", err
		}
		return path, nil
	}

	if err := prepareCatalogPath(path, create); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func extractFilePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid catalog path: %w", err)
	}

	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}

	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func prepareCatalogPath(path string, create bool) error {
	if !create {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("catalog not found: %s", path)
			}
			return fmt.Errorf("stat catalog: %w", err)
		}
		return nil
	}

	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}
	return nil
}

func configureLocalSQLite(ctx context.Context, db *sql.DB, dsn string) error {
	// An in-memory database lives and dies with its connection.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		return nil
	}
	if !strings.HasPrefix(dsn, "file:") {
		return nil
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}

	return nil
}
