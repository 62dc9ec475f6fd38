package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	input_file  TEXT NOT NULL,
	output_file TEXT NOT NULL,
	total       INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_errors (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	address TEXT NOT NULL,
	message TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_run_errors_run_id ON run_errors(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run Run, errs []RecordError) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin record run")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, input_file, output_file, total, succeeded, failed, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputFile, run.OutputFile, run.Total, run.Succeeded, run.Failed,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	for _, re := range errs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_errors (run_id, address, message) VALUES (?, ?, ?)`,
			run.ID, re.Address, re.Message,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert run error")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit record run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, []RecordError, error) {
	var run Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input_file, output_file, total, succeeded, failed, started_at, finished_at
		 FROM runs WHERE id = ?`, runID,
	).Scan(&run.ID, &run.InputFile, &run.OutputFile, &run.Total, &run.Succeeded, &run.Failed,
		&run.StartedAt, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil, eris.Errorf("sqlite: run %s not found", runID)
	}
	if err != nil {
		return nil, nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT address, message FROM run_errors WHERE run_id = ?`, runID)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "sqlite: get run errors %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var errs []RecordError
	for rows.Next() {
		var re RecordError
		if err := rows.Scan(&re.Address, &re.Message); err != nil {
			return nil, nil, eris.Wrap(err, "sqlite: scan run error")
		}
		errs = append(errs, re)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: iterate run errors")
	}

	return &run, errs, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_file, output_file, total, succeeded, failed, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.InputFile, &run.OutputFile, &run.Total, &run.Succeeded,
			&run.Failed, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}
