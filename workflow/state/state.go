// Package state defines the run state that flows through every step of a
// compiled workflow, together with the commutative reducers that merge
// concurrent writers safely.
package state

import "time"

// Status is the lifecycle of a single step within a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusValidation Status = "validation"
)

// Message is a single turn in the append-only conversation log.
type Message struct {
	Role    string
	Content string
}

// ModelAttempt records one candidate tried during the model-failover loop
// for a single LLM-backed step invocation.
type ModelAttempt struct {
	Model     string
	Error     string
	Retryable bool
}

// StepMeta carries bookkeeping that doesn't belong in a step's declared
// outputs: token usage, which model ultimately served the step, and the
// full failover attempt history.
type StepMeta struct {
	PromptTokens     int
	CompletionTokens int
	Model            string
	Attempts         []ModelAttempt
}

// StepState is the entry recorded in Run.Steps for a single step.
type StepState struct {
	Name      string
	Status    Status
	Outputs   map[string]any
	Error     string
	Iteration int
	Meta      StepMeta
	StartedAt time.Time
	EndedAt   time.Time
}

// DurationMS reports the step's wall-clock duration in milliseconds, or
// zero if the step hasn't completed.
func (s StepState) DurationMS() int64 {
	if s.EndedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt).Milliseconds()
}

// Run is the state object threaded through a single workflow execution.
//
// Every field has a single reducer (see Merge). Deltas that write
// disjoint context, output and step keys give the same result in either
// order; for the same key the delta applied last wins, and messages and
// errors keep the order in which deltas were applied. The executor
// applies each delta under one lock, with no ordering between siblings.
type Run struct {
	Messages     []Message
	Context      map[string]any
	Inputs       map[string]any
	Outputs      map[string]any
	Steps        map[string]StepState
	CurrentStep  string
	Errors       []string
}

// New returns an empty Run with all maps initialized, ready to receive
// merges. A zero-value Run is not safe to merge into because its maps are
// nil; callers should always start from New.
func New() Run {
	return Run{
		Context: make(map[string]any),
		Inputs:  make(map[string]any),
		Outputs: make(map[string]any),
		Steps:   make(map[string]StepState),
	}
}

// Delta is a partial update produced by a single node execution. Every
// field is optional; Merge only applies the fields a node actually set.
// A delta never removes anything — only appends or replaces keys it
// explicitly names.
type Delta struct {
	Messages    []Message
	Context     map[string]any
	Inputs      map[string]any
	Outputs     map[string]any
	Step        *StepState
	CurrentStep string
	Errors      []string
}

// Merge applies delta to prev using the per-field reducer table from
// spec §4.7:
//
//	messages     concatenation
//	context      shallow merge, last writer per key wins
//	inputs       shallow merge, set once (never rewritten after first write)
//	outputs      shallow merge
//	steps        per-key replace
//	current_step last-non-empty wins
//	errors       concatenation
//
// Merge never mutates prev's maps in place — it returns a new Run whose
// maps are safe to keep using from either goroutine. This makes Merge
// safe to call concurrently as long as the caller serializes the calls
// themselves (the executor does this with a single mutex around the
// merge point; Merge itself does no locking).
func Merge(prev Run, delta Delta) Run {
	next := Run{
		Messages:    append(append([]Message{}, prev.Messages...), delta.Messages...),
		Context:     mergeMap(prev.Context, delta.Context),
		Inputs:      mergeInputs(prev.Inputs, delta.Inputs),
		Outputs:     mergeMap(prev.Outputs, delta.Outputs),
		Steps:       mergeSteps(prev.Steps, delta.Step),
		CurrentStep: prev.CurrentStep,
		Errors:      append(append([]string{}, prev.Errors...), delta.Errors...),
	}
	if delta.CurrentStep != "" {
		next.CurrentStep = delta.CurrentStep
	}
	return next
}

func mergeMap(prev, delta map[string]any) map[string]any {
	out := make(map[string]any, len(prev)+len(delta))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}

// mergeInputs implements "set once": a key already present in prev is
// never overwritten, even if a delta (erroneously) tries to rewrite it.
func mergeInputs(prev, delta map[string]any) map[string]any {
	out := make(map[string]any, len(prev)+len(delta))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range delta {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

func mergeSteps(prev map[string]StepState, step *StepState) map[string]StepState {
	out := make(map[string]StepState, len(prev)+1)
	for k, v := range prev {
		out[k] = v
	}
	if step != nil {
		out[step.Name] = *step
	}
	return out
}
