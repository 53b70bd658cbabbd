package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dshills/flowgraph/workflow/state"
)

// SQLite is a single-file Store backed by modernc.org/sqlite, suitable
// for development and single-process deployments that still want
// checkpoints to survive a restart.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens (creating if necessary) a SQLite database at path and
// ensures its schema exists. path may be ":memory:" for a throwaway
// in-process database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &SQLite{db: db}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS run_snapshots (
	thread_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	state_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_snapshots_thread ON run_snapshots(thread_id, created_at);
`)
	if err != nil {
		return fmt.Errorf("store: creating schema: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Put(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("store: marshaling state: %w", err)
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_snapshots (thread_id, step, state_json, created_at) VALUES (?, ?, ?, ?)`,
		snap.ThreadID, snap.Step, string(data), ts,
	)
	if err != nil {
		return fmt.Errorf("store: inserting snapshot: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, threadID string) (Snapshot, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT step, state_json, created_at FROM run_snapshots
		 WHERE thread_id = ? ORDER BY created_at DESC, step DESC LIMIT 1`, threadID)

	var step int
	var stateJSON string
	var createdAt time.Time
	if err := row.Scan(&step, &stateJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("store: loading snapshot: %w", err)
	}

	var run state.Run
	if err := json.Unmarshal([]byte(stateJSON), &run); err != nil {
		return Snapshot{}, false, fmt.Errorf("store: unmarshaling state: %w", err)
	}
	return Snapshot{ThreadID: threadID, Step: step, State: run, Timestamp: createdAt}, true, nil
}

func (s *SQLite) History(ctx context.Context, threadID string, limit int) ([]Snapshot, error) {
	query := `SELECT step, state_json, created_at FROM run_snapshots
	          WHERE thread_id = ? ORDER BY created_at DESC, step DESC`
	args := []any{threadID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: querying history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Snapshot
	for rows.Next() {
		var step int
		var stateJSON string
		var createdAt time.Time
		if err := rows.Scan(&step, &stateJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scanning history row: %w", err)
		}
		var run state.Run
		if err := json.Unmarshal([]byte(stateJSON), &run); err != nil {
			return nil, fmt.Errorf("store: unmarshaling state: %w", err)
		}
		out = append(out, Snapshot{ThreadID: threadID, Step: step, State: run, Timestamp: createdAt})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Rows arrive newest first; return them oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
