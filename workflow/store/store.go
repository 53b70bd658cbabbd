// Package store persists run checkpoints so a workflow can be inspected
// or resumed after the process exits.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/flowgraph/workflow/state"
)

// ErrNotFound names the "no snapshot for this thread ID" condition. The
// Store implementations in this package do not return it: Get reports a
// missing thread with ok=false.
var ErrNotFound = errors.New("store: not found")

// Snapshot is a single point-in-time checkpoint of a run's state.
type Snapshot struct {
	ThreadID  string
	Step      int
	State     state.Run
	Timestamp time.Time
}

// Store persists and retrieves run snapshots, keyed by thread ID (the
// caller-assigned identifier for one workflow run). Implementations
// must be safe for concurrent use.
type Store interface {
	// Put appends a new snapshot for threadID. Implementations keep the
	// full history; Get always answers with the most recently Put
	// snapshot.
	Put(ctx context.Context, snap Snapshot) error

	// Get returns the latest snapshot for threadID, or ok=false if none
	// exists.
	Get(ctx context.Context, threadID string) (snap Snapshot, ok bool, err error)

	// History returns the most recent limit snapshots for threadID,
	// oldest first. limit <= 0 means unbounded.
	History(ctx context.Context, threadID string, limit int) ([]Snapshot, error)
}
