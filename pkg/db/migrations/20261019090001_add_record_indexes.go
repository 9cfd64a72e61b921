package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillfit/pkg/db"
)

// Migration20261019090001AddRecordIndexes indexes runs by start time and
// records by path.
func Migration20261019090001AddRecordIndexes() db.Migration {
	indexes := []struct {
		name string
		ddl  string
	}{
		{"idx_refactor_runs_started_at", "CREATE INDEX IF NOT EXISTS idx_refactor_runs_started_at ON refactor_runs(started_at DESC)"},
		{"idx_refactor_records_path", "CREATE INDEX IF NOT EXISTS idx_refactor_records_path ON refactor_records(path)"},
	}

	return db.Migration{
		Version:     20261019090001,
		Description: "Add refactor history indexes",
		Up: func(tx *sql.Tx) error {
			for _, idx := range indexes {
				if _, err := tx.Exec(idx.ddl); err != nil {
					return errors.Wrapf(err, "failed to create index %s", idx.name)
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, idx := range indexes {
				if _, err := tx.Exec("DROP INDEX IF EXISTS " + idx.name); err != nil {
					return errors.Wrapf(err, "failed to drop index %s", idx.name)
				}
			}
			return nil
		},
	}
}
