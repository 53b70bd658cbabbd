package emit

import "time"

// Type tags the canonical event union.
type Type string

const (
	WorkflowStart  Type = "workflow_start"
	WorkflowEnd    Type = "workflow_end"
	StepStart      Type = "step_start"
	StepComplete   Type = "step_complete"
)

// Event is the trace-emitter-neutral record emitted at every lifecycle
// boundary: run start/end and each step's start/completion (including
// cascaded skips, which emit only StepComplete with Data["status"] ==
// "skipped").
type Event struct {
	Type      Type
	Timestamp time.Time

	// RunID identifies the workflow execution that emitted this event.
	RunID string

	// StepName is empty for workflow-level events.
	StepName string

	// Data is a key-value bag specific to the event type. Common keys:
	// "status", "duration_ms", "error", "model", "attempts", "reason".
	Data map[string]any
}

// sensitiveKeys lists the Data keys filtered before emission unless the
// caller opts in via Multi's CaptureSensitive flag (see NewMulti).
var sensitiveKeys = map[string]bool{
	"inputs":   true,
	"outputs":  true,
	"prompt":   true,
	"response": true,
	"content":  true,
}

// redact returns a copy of data with sensitive keys removed. Passing
// captureSensitive=true returns data unchanged (a shallow copy, so
// callers never get a mutable alias into the caller's map).
func redact(data map[string]any, captureSensitive bool) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if !captureSensitive && sensitiveKeys[k] {
			continue
		}
		out[k] = v
	}
	return out
}
