// Package history persists batch reports in the skillfit SQLite database.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillfit/pkg/batch"
	"github.com/jingkaihe/skillfit/pkg/db"
	"github.com/jingkaihe/skillfit/pkg/db/migrations"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// JSONField stores a value as a JSON column.
type JSONField[T any] struct {
	Data T
}

// Scan implements sql.Scanner.
func (j *JSONField[T]) Scan(value any) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.Errorf("cannot scan %T into JSONField", value)
		}
		bytes = []byte(str)
	}

	return json.Unmarshal(bytes, &j.Data)
}

// Value implements driver.Valuer.
func (j JSONField[T]) Value() (driver.Value, error) {
	data, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

type dbRun struct {
	ID         string                   `db:"id"`
	Root       string                   `db:"root"`
	Budget     int                      `db:"budget"`
	DryRun     bool                     `db:"dry_run"`
	Summary    JSONField[batch.Summary] `db:"summary"`
	StartedAt  time.Time                `db:"started_at"`
	FinishedAt time.Time                `db:"finished_at"`
}

type dbRecord struct {
	RunID     string              `db:"run_id"`
	Position  int                 `db:"position"`
	Path      string              `db:"path"`
	Status    string              `db:"status"`
	Before    int                 `db:"before_lines"`
	After     int                 `db:"after_lines"`
	Extracted int                 `db:"extracted"`
	Sections  JSONField[[]string] `db:"sections"`
	Artifacts JSONField[[]string] `db:"artifacts"`
	Error     sql.NullString      `db:"error"`
	ErrorKind sql.NullString      `db:"error_kind"`
}

func (r dbRun) toReport() batch.Report {
	return batch.Report{
		ID:         r.ID,
		Root:       r.Root,
		Budget:     r.Budget,
		DryRun:     r.DryRun,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Summary:    r.Summary.Data,
	}
}

func (r dbRecord) toRecord(budget int) batch.Record {
	return batch.Record{
		Path:      r.Path,
		Status:    batch.Status(r.Status),
		Before:    r.Before,
		After:     r.After,
		Extracted: r.Extracted,
		Compliant: r.Status != string(batch.StatusError) && r.After <= budget,
		Sections:  nilIfEmpty(r.Sections.Data),
		Artifacts: nilIfEmpty(r.Artifacts.Data),
		Error:     r.Error.String,
		ErrorKind: batch.ErrorKind(r.ErrorKind.String),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Store reads and writes run history.
type Store struct {
	db *sqlx.DB
}

// Open opens the history database at dbPath, applying pending migrations.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	conn, err := db.OpenMigrated(ctx, dbPath, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history")
	}
	return &Store{db: conn}, nil
}

// OpenDefault opens the history database at db.DefaultDBPath.
func OpenDefault(ctx context.Context) (*Store, error) {
	dbPath, err := db.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return Open(ctx, dbPath)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores report and assigns it an ID when it has none. It returns the
// run ID.
func (s *Store) Save(ctx context.Context, report *batch.Report) (string, error) {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	run := dbRun{
		ID:         report.ID,
		Root:       report.Root,
		Budget:     report.Budget,
		DryRun:     report.DryRun,
		Summary:    JSONField[batch.Summary]{Data: report.Summary},
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO refactor_runs (id, root, budget, dry_run, summary, started_at, finished_at)
		VALUES (:id, :root, :budget, :dry_run, :summary, :started_at, :finished_at)
	`, run); err != nil {
		return "", errors.Wrap(err, "failed to save run")
	}

	for i, rec := range report.Records {
		row := dbRecord{
			RunID:     report.ID,
			Position:  i,
			Path:      rec.Path,
			Status:    string(rec.Status),
			Before:    rec.Before,
			After:     rec.After,
			Extracted: rec.Extracted,
			Sections:  JSONField[[]string]{Data: nonNil(rec.Sections)},
			Artifacts: JSONField[[]string]{Data: nonNil(rec.Artifacts)},
			Error:     nullString(rec.Error),
			ErrorKind: nullString(string(rec.ErrorKind)),
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO refactor_records (
				run_id, position, path, status, before_lines, after_lines, extracted,
				sections, artifacts, error, error_kind
			) VALUES (
				:run_id, :position, :path, :status, :before_lines, :after_lines, :extracted,
				:sections, :artifacts, :error, :error_kind
			)
		`, row); err != nil {
			return "", errors.Wrapf(err, "failed to save record %s", rec.Path)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "failed to commit run")
	}
	return report.ID, nil
}

// List returns the most recent runs without their records, newest first.
// A limit of zero or less returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]batch.Report, error) {
	query := `SELECT id, root, budget, dry_run, summary, started_at, finished_at
		FROM refactor_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var runs []dbRun
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}

	reports := make([]batch.Report, len(runs))
	for i, r := range runs {
		reports[i] = r.toReport()
	}
	return reports, nil
}

// Get returns a run with its records. A unique ID prefix is accepted.
func (s *Store) Get(ctx context.Context, id string) (*batch.Report, error) {
	var runs []dbRun
	if err := s.db.SelectContext(ctx, &runs, `
		SELECT id, root, budget, dry_run, summary, started_at, finished_at
		FROM refactor_runs WHERE id = ? OR id LIKE ? ORDER BY started_at DESC LIMIT 2
	`, id, id+"%"); err != nil {
		return nil, errors.Wrap(err, "failed to load run")
	}
	switch {
	case len(runs) == 0:
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	case len(runs) > 1 && runs[0].ID != id:
		return nil, errors.Errorf("run id prefix %q is ambiguous", id)
	}

	report := runs[0].toReport()
	var rows []dbRecord
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT run_id, position, path, status, before_lines, after_lines, extracted,
			sections, artifacts, error, error_kind
		FROM refactor_records WHERE run_id = ? ORDER BY position
	`, report.ID); err != nil {
		return nil, errors.Wrap(err, "failed to load records")
	}
	for _, row := range rows {
		report.Records = append(report.Records, row.toRecord(report.Budget))
	}
	return &report, nil
}

// Delete removes a run and its records.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM refactor_runs WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrNotFound, "%s", id)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
