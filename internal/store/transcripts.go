// Package store persists conversation transcripts in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"taigent/internal/logging"
	"taigent/internal/types"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is one row of ListRuns.
type RunSummary struct {
	RunID      string
	Input      string
	State      string
	RoundTrips int
	ToolCalls  int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// TranscriptStore is a SQLite-backed transcript store. It satisfies the
// conversation loop's Recorder interface.
type TranscriptStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open opens (creating if needed) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func Open(path string) (*TranscriptStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening transcript store at %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.StoreDebug("%s failed: %v", pragma, err)
		}
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &TranscriptStore{db: db, dbPath: path}, nil
}

// Close closes the database.
func (s *TranscriptStore) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *TranscriptStore) Path() string { return s.dbPath }

// SaveRun stores a finished run. Saving the same run id again replaces it.
func (s *TranscriptStore) SaveRun(ctx context.Context, t *types.Transcript) error {
	if t == nil || t.RunID == "" {
		return errors.New("transcript has no run id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE run_id = ?", t.RunID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
			(run_id, input, response, state, round_trips, tool_calls, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Input, t.Response, t.State, t.RoundTrips, t.ToolCalls, t.Error,
		t.StartedAt.UnixNano(), t.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (run_id, seq, role, content, tool_calls, tool_call_id, name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range t.Messages {
		calls := ""
		if len(msg.ToolCalls) > 0 {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to encode tool calls: %w", err)
			}
			calls = string(data)
		}
		if _, err := stmt.ExecContext(ctx, t.RunID, i, string(msg.Role), msg.Content, calls, msg.ToolCallID, msg.Name); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	logging.StoreDebug("Saved run %s (%d messages)", t.RunID, len(t.Messages))
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *TranscriptStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, input, state, round_trips, tool_calls, error, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished int64
		if err := rows.Scan(&r.RunID, &r.Input, &r.State, &r.RoundTrips, &r.ToolCalls, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		r.FinishedAt = time.Unix(0, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun loads a full transcript.
func (s *TranscriptStore) GetRun(ctx context.Context, runID string) (*types.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &types.Transcript{RunID: runID}
	var started, finished int64
	err := s.db.QueryRowContext(ctx,
		`SELECT input, response, state, round_trips, tool_calls, error, started_at, finished_at
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&t.Input, &t.Response, &t.State, &t.RoundTrips, &t.ToolCalls, &t.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	t.StartedAt = time.Unix(0, started)
	t.FinishedAt = time.Unix(0, finished)

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_calls, tool_call_id, name
		 FROM messages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg types.Message
		var role, calls string
		if err := rows.Scan(&role, &msg.Content, &calls, &msg.ToolCallID, &msg.Name); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = types.Role(role)
		if calls != "" {
			if err := json.Unmarshal([]byte(calls), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls: %w", err)
			}
		}
		t.Messages = append(t.Messages, msg)
	}
	return t, rows.Err()
}
