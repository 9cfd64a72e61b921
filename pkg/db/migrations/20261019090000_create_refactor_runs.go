package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillfit/pkg/db"
)

// Migration20261019090000CreateRefactorRuns creates the refactor_runs and
// refactor_records tables.
func Migration20261019090000CreateRefactorRuns() db.Migration {
	return db.Migration{
		Version:     20261019090000,
		Description: "Create refactor_runs and refactor_records tables",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS refactor_runs (
					id TEXT PRIMARY KEY,
					root TEXT NOT NULL,
					budget INTEGER NOT NULL,
					dry_run BOOLEAN NOT NULL DEFAULT 0,
					summary TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					finished_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create refactor_runs table")
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS refactor_records (
					run_id TEXT NOT NULL REFERENCES refactor_runs(id) ON DELETE CASCADE,
					position INTEGER NOT NULL,
					path TEXT NOT NULL,
					status TEXT NOT NULL,
					before_lines INTEGER NOT NULL,
					after_lines INTEGER NOT NULL,
					extracted INTEGER NOT NULL,
					sections TEXT NOT NULL,
					artifacts TEXT NOT NULL,
					error TEXT,
					error_kind TEXT,
					PRIMARY KEY (run_id, position)
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create refactor_records table")
			}

			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS refactor_records"); err != nil {
				return errors.Wrap(err, "failed to drop refactor_records table")
			}
			if _, err := tx.Exec("DROP TABLE IF EXISTS refactor_runs"); err != nil {
				return errors.Wrap(err, "failed to drop refactor_runs table")
			}
			return nil
		},
	}
}
