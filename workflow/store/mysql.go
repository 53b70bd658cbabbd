package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dshills/flowgraph/workflow/state"
)

// MySQL is a Store backed by a shared MySQL instance, for deployments
// that run the executor across multiple processes against one
// checkpoint table.
type MySQL struct {
	db *sql.DB
}

// NewMySQL opens a connection pool against dsn (a go-sql-driver/mysql
// DSN) and ensures the checkpoint table exists.
func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening mysql connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: pinging mysql: %w", err)
	}

	m := &MySQL{db: db}
	if err := m.createSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *MySQL) createSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS run_snapshots (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	thread_id VARCHAR(255) NOT NULL,
	step INT NOT NULL,
	state_json LONGTEXT NOT NULL,
	created_at TIMESTAMP(6) NOT NULL,
	INDEX idx_thread_created (thread_id, created_at)
) ENGINE=InnoDB`)
	if err != nil {
		return fmt.Errorf("store: creating schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (m *MySQL) Close() error {
	return m.db.Close()
}

func (m *MySQL) Put(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("store: marshaling state: %w", err)
	}
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO run_snapshots (thread_id, step, state_json, created_at) VALUES (?, ?, ?, ?)`,
		snap.ThreadID, snap.Step, string(data), ts,
	)
	if err != nil {
		return fmt.Errorf("store: inserting snapshot: %w", err)
	}
	return nil
}

func (m *MySQL) Get(ctx context.Context, threadID string) (Snapshot, bool, error) {
	row := m.db.QueryRowContext(ctx,
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

func (m *MySQL) History(ctx context.Context, threadID string, limit int) ([]Snapshot, error) {
	query := `SELECT step, state_json, created_at FROM run_snapshots
	          WHERE thread_id = ? ORDER BY created_at DESC, step DESC`
	args := []any{threadID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
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
