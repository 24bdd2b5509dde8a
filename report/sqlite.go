package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS builds (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run        TEXT NOT NULL,
	dataset    TEXT NOT NULL,
	family     TEXT NOT NULL,
	precision  TEXT NOT NULL,
	metric     TEXT NOT NULL,
	build      TEXT NOT NULL,
	elapsed_s  REAL NOT NULL,
	restored   INTEGER NOT NULL,
	error      TEXT
);
CREATE TABLE IF NOT EXISTS results (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run        TEXT NOT NULL,
	dataset    TEXT NOT NULL,
	family     TEXT NOT NULL,
	precision  TEXT NOT NULL,
	metric     TEXT NOT NULL,
	build      TEXT NOT NULL,
	search     TEXT NOT NULL,
	nq         INTEGER NOT NULL,
	k          INTEGER NOT NULL,
	elapsed_s  REAL NOT NULL,
	recall     REAL NOT NULL,
	error      TEXT
);
CREATE INDEX IF NOT EXISTS results_run ON results(run, family, precision);
`

// SQLiteSink stores headers and rows in a SQLite database, one INSERT per
// event so rows are durable as soon as Emit returns.
type SQLiteSink struct {
	db  *sql.DB
	run string
	own bool
}

// OpenSQLiteSink opens (or creates) the database at dsn. run tags every
// record; an empty run uses the current time.
func OpenSQLiteSink(dsn, run string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteSink(db, run)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.own = true
	return s, nil
}

// NewSQLiteSink uses an existing database handle, which Close leaves open.
func NewSQLiteSink(db *sql.DB, run string) (*SQLiteSink, error) {
	if db == nil {
		return nil, fmt.Errorf("report: db is nil")
	}
	if run == "" {
		run = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("report: create schema: %w", err)
	}
	return &SQLiteSink{db: db, run: run}, nil
}

// Run returns the run tag.
func (s *SQLiteSink) Run() string { return s.run }

// Begin implements Sink.
func (s *SQLiteSink) Begin(h Header) error {
	var errMsg sql.NullString
	if h.Err != nil {
		errMsg = sql.NullString{String: h.Err.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO builds(run, dataset, family, precision, metric, build, elapsed_s, restored, error) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.run, h.Dataset, h.Family, h.Precision.String(), h.Metric.String(), h.Build.String(), h.BuildElapsed.Seconds(), h.Restored, errMsg)
	return err
}

// Emit implements Sink.
func (s *SQLiteSink) Emit(r Row) error {
	var errMsg sql.NullString
	if r.Err != nil {
		errMsg = sql.NullString{String: r.Err.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO results(run, dataset, family, precision, metric, build, search, nq, k, elapsed_s, recall, error) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.run, r.Dataset, r.Family, r.Precision.String(), r.Metric.String(), r.Build.String(), r.Search.String(), r.NQ, r.K, r.Elapsed.Seconds(), r.Recall, errMsg)
	return err
}

// End implements Sink.
func (s *SQLiteSink) End(Header) error { return nil }

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	if s.own {
		return s.db.Close()
	}
	return nil
}
