// Package storage persists listings, categories and sessions in a single
// SQLite database and builds the listing search queries.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/roost/pkg/db"
	"github.com/rubiojr/roost/pkg/log"
)

var (
	// ErrNotFound is returned when a listing lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrPendingMigrations is returned by EnsureSchema on an outdated database.
	ErrPendingMigrations = errors.New("database has pending migrations, run 'roost migrate' first")
)

var logger = log.ForService("store")

type Store struct {
	db            *sql.DB
	path          string
	defaultLocale string
}

// Open opens (creating if needed) the database at dbPath. Translations
// missing in a requested locale fall back to defaultLocale.
func Open(dbPath, defaultLocale string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -32000",
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	return &Store{db: conn, path: dbPath, defaultLocale: defaultLocale}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection, shared with the session store and
// the migration manager.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) DefaultLocale() string {
	return s.defaultLocale
}

// Migrate applies every pending migration.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	return db.NewMigrationManager(s.db).ApplyPendingMigrations(ctx)
}

// EnsureSchema initializes a fresh database and refuses to run against one
// that has been migrated before but is behind the embedded schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	status, err := db.NewMigrationManager(s.db).GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	if len(status.Pending) == 0 {
		return nil
	}
	if len(status.Applied) > 0 {
		return fmt.Errorf("%s: %w", s.path, ErrPendingMigrations)
	}

	n, err := s.Migrate(ctx)
	if err != nil {
		return err
	}
	logger.Infof("initialized %s (%d migrations)", s.path, n)
	return nil
}
