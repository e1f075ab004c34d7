package datastore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jbweber/homelab/cinv/internal/migrations"
	_ "modernc.org/sqlite"
)

// Datastore owns the SQLite connection backing the inventory.
type Datastore struct {
	DB *sql.DB
}

// Open opens (creating if needed) the SQLite database at path, applies
// connection settings and runs migrations. path may be a plain file name or a
// "file:" DSN.
func Open(path string, logger *slog.Logger) (*Datastore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	configureConnection(db)

	if err := applyPragmas(db, isMemory(path)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := migrate(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Datastore{DB: db}, nil
}

// Close closes the underlying database.
func (ds *Datastore) Close() error {
	return ds.DB.Close()
}

// configureConnection pins the pool to one connection. Pragmas are
// per-connection in SQLite, and a single connection keeps shared in-memory
// databases alive for the lifetime of the pool.
func configureConnection(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
}

func applyPragmas(db *sql.DB, memory bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func migrate(db *sql.DB, logger *slog.Logger) error {
	migrator := migrations.NewMigrator(db).WithLogger(logger)
	for _, migration := range migrations.GetPropertyMigrations() {
		migrator.AddMigration(migration)
	}
	return migrator.RunMigrations()
}
