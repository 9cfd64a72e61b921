// Package db opens the SQLite database that backs skillfit's run history.
package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// BasePathEnv overrides the directory that holds skillfit state.
const BasePathEnv = "SKILLFIT_BASE_PATH"

// DefaultDBPath returns the default path of the history database.
func DefaultDBPath() (string, error) {
	if basePath := os.Getenv(BasePathEnv); basePath != "" {
		return filepath.Join(basePath, "storage.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skillfit", "storage.db"), nil
}

// Open opens or creates a SQLite database at dbPath in WAL mode.
func Open(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := Configure(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}

	return db, nil
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=memory",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Configure applies the connection pragmas and limits the pool to a single
// connection.
func Configure(ctx context.Context, db *sqlx.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	return VerifyConfiguration(ctx, db)
}

// VerifyConfiguration checks that WAL mode and foreign keys are active.
func VerifyConfiguration(ctx context.Context, db *sqlx.DB) error {
	var journalMode string
	if err := db.GetContext(ctx, &journalMode, "PRAGMA journal_mode"); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("expected WAL mode, got %s", journalMode)
	}

	var foreignKeys string
	if err := db.GetContext(ctx, &foreignKeys, "PRAGMA foreign_keys"); err != nil {
		return errors.Wrap(err, "failed to query foreign keys")
	}
	if foreignKeys != "1" {
		return errors.Errorf("expected foreign keys ON, got %s", foreignKeys)
	}

	return nil
}

// OpenMigrated opens dbPath and applies migrations.
func OpenMigrated(ctx context.Context, dbPath string, migrations []Migration) (*sqlx.DB, error) {
	db, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	if err := NewMigrationRunner(db).Run(ctx, migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
