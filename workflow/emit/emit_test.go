package emit

import (
	"context"
	"testing"
)

func TestRedactFiltersSensitiveKeys(t *testing.T) {
	data := map[string]any{"status": "success", "prompt": "secret", "outputs": map[string]any{"x": 1}}
	got := redact(data, false)
	if _, ok := got["prompt"]; ok {
		t.Fatalf("expected prompt to be redacted")
	}
	if _, ok := got["outputs"]; ok {
		t.Fatalf("expected outputs to be redacted")
	}
	if got["status"] != "success" {
		t.Fatalf("expected non-sensitive field to survive redaction")
	}
}

func TestRedactCaptureSensitiveKeepsEverything(t *testing.T) {
	data := map[string]any{"prompt": "secret"}
	got := redact(data, true)
	if got["prompt"] != "secret" {
		t.Fatalf("expected capture-sensitive to preserve prompt")
	}
}

func TestMultiFanOutReachesAllSinks(t *testing.T) {
	a := NewBuffered()
	b := NewBuffered()
	m := NewMulti(false, a, b)

	m.Emit(Event{Type: WorkflowStart, RunID: "run-1"})

	if len(a.GetHistory("run-1")) != 1 || len(b.GetHistory("run-1")) != 1 {
		t.Fatalf("expected both sinks to receive the event")
	}
}

type panickingSink struct{}

func (panickingSink) Emit(Event) { panic("boom") }
func (panickingSink) Flush(context.Context) error { return nil }

func TestMultiSurvivesAPanickingSink(t *testing.T) {
	good := NewBuffered()
	m := NewMulti(false, panickingSink{}, good)

	m.Emit(Event{Type: WorkflowStart, RunID: "run-1"})

	if len(good.GetHistory("run-1")) != 1 {
		t.Fatalf("expected the surviving sink to still receive the event")
	}
}

func TestBufferedHistoryFilter(t *testing.T) {
	b := NewBuffered()
	b.Emit(Event{Type: StepStart, RunID: "r", StepName: "a"})
	b.Emit(Event{Type: StepComplete, RunID: "r", StepName: "a"})
	b.Emit(Event{Type: StepStart, RunID: "r", StepName: "b"})

	filtered := b.GetHistoryWithFilter("r", HistoryFilter{StepName: "a"})
	if len(filtered) != 2 {
		t.Fatalf("expected 2 events for step a, got %d", len(filtered))
	}
}

func TestNullSinkDiscardsEverything(t *testing.T) {
	var s Sink = Null{}
	s.Emit(Event{Type: WorkflowStart})
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("expected nil error from Null.Flush, got %v", err)
	}
}
