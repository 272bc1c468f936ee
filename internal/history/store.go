// Package history persists per-file compile outcomes in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/sassc/internal/compile"
	"git.home.luguber.info/inful/sassc/internal/logfields"
)

// Record is one stored compile attempt.
type Record struct {
	ID       int64
	RunID    string
	Trigger  string
	Source   string
	Output   string
	Success  bool
	Message  string
	Duration time.Duration
	At       time.Time
}

// Store is an append-only history of compile outcomes.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDatabaseOpenFailed, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseOpenFailed, err)
	}
	// one connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrInitializeSchemaFailed, err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS compiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		trigger TEXT NOT NULL,
		source TEXT NOT NULL,
		output TEXT NOT NULL,
		success INTEGER NOT NULL,
		message TEXT,
		duration_ns INTEGER NOT NULL,
		at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_compiles_run_id ON compiles(run_id);
	CREATE INDEX IF NOT EXISTS idx_compiles_at ON compiles(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append stores r. A zero At is set to now.
func (s *Store) Append(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO compiles (run_id, trigger, source, output, success, message, duration_ns, at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		r.RunID, r.Trigger, r.Source, r.Output, r.Success, r.Message, int64(r.Duration), r.At.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAppendFailed, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, trigger, source, output, success, message, duration_ns, at FROM compiles ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ByRun returns the records of one run in insertion order.
func (s *Store) ByRun(ctx context.Context, runID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, trigger, source, output, success, message, duration_ns, at FROM compiles WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			r        Record
			message  sql.NullString
			duration int64
			at       int64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Trigger, &r.Source, &r.Output, &r.Success, &message, &duration, &at); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrQueryFailed, err)
		}
		r.Message = message.String
		r.Duration = time.Duration(duration)
		r.At = time.Unix(0, at)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate: %w", ErrQueryFailed, err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Observer records every compile outcome in s. Append failures are logged.
func (s *Store) Observer(logger *slog.Logger) compile.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return compile.ObserverFunc(func(o compile.Outcome) {
		r := Record{
			RunID:    o.RunID,
			Trigger:  string(o.Trigger),
			Source:   o.Source,
			Output:   o.Output,
			Success:  o.Succeeded(),
			Duration: o.Duration,
			Message:  o.Message(),
			At:       o.Started,
		}
		if err := s.Append(context.Background(), r); err != nil {
			logger.Warn("Recording compile failed", logfields.File(o.Source), logfields.Error(err))
		}
	})
}
