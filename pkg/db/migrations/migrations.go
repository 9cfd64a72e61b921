// Package migrations holds the history database schema.
// Versions are timestamps (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/jingkaihe/skillfit/pkg/db"
)

// All returns every registered migration. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20261019090000CreateRefactorRuns(),
		Migration20261019090001AddRecordIndexes(),
	}
}
