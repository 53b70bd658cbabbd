package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Log writes events to an io.Writer, either as human-readable text or
// as JSONL (one JSON object per line).
type Log struct {
	writer   io.Writer
	jsonMode bool
}

// NewLog returns a Log sink writing to writer (os.Stdout if nil).
func NewLog(writer io.Writer, jsonMode bool) *Log {
	if writer == nil {
		writer = os.Stdout
	}
	return &Log{writer: writer, jsonMode: jsonMode}
}

func (l *Log) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
		return
	}
	l.emitText(event)
}

func (l *Log) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		Type     Type           `json:"type"`
		RunID    string         `json:"run_id"`
		StepName string         `json:"step_name,omitempty"`
		Data     map[string]any `json:"data,omitempty"`
	}{Type: event.Type, RunID: event.RunID, StepName: event.StepName, Data: event.Data})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *Log) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] run=%s step=%s", event.Type, event.RunID, event.StepName)
	if len(event.Data) > 0 {
		if metaJSON, err := json.Marshal(event.Data); err == nil {
			_, _ = fmt.Fprintf(l.writer, " data=%s", metaJSON)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

// Flush is a no-op: Log writes synchronously with no internal
// buffering of its own.
func (l *Log) Flush(context.Context) error { return nil }
