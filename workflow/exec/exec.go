// Package exec implements the run-wide Kahn-scheduled executor of spec
// section 4.6: a bounded-concurrency ready queue over a compiled graph,
// atomic reducer-based state merge, cascading skip on failure, cancellation
// and per-step timeout, and optional checkpointing.
package exec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/flowgraph/workflow/compiler"
	"github.com/dshills/flowgraph/workflow/emit"
	"github.com/dshills/flowgraph/workflow/expr"
	"github.com/dshills/flowgraph/workflow/metrics"
	"github.com/dshills/flowgraph/workflow/state"
	"github.com/dshills/flowgraph/workflow/store"
)

func viewOf(run state.Run) expr.View { return expr.NewView(run) }

// DefaultMaxConcurrency is the run-wide concurrency ceiling used when
// Options.MaxConcurrency is unset, per spec section 4.6.
const DefaultMaxConcurrency = 10

// Options configures a single Run invocation.
type Options struct {
	MaxConcurrency int
	StepTimeout    time.Duration
	Sink           emit.Sink
	Store          store.Store
	ThreadID       string
	RunID          string

	// Resume, when true, loads the latest snapshot for ThreadID from
	// Store and continues scheduling only the steps not yet terminal.
	Resume bool

	// Metrics receives executor concurrency/latency/retry/skip counters.
	// Defaults to metrics.Null() (no-op) when unset.
	Metrics *metrics.Collector
}

// Result is the outcome of one executor run.
type Result struct {
	State  state.Run
	Status string // "success", "partial", "failed", "cancelled"
}

const (
	StatusSuccess   = "success"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

type nodeOutcome struct {
	name  string
	delta state.Delta
}

// Run schedules and executes every step of g against an initial run state,
// following the Kahn algorithm of spec 4.6.
func Run(ctx context.Context, g *compiler.Graph, initial state.Run, opts Options) (Result, error) {
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	sink := opts.Sink
	if sink == nil {
		sink = emit.Null{}
	}
	mtr := opts.Metrics
	if mtr == nil {
		mtr = metrics.Null()
	}

	sched := newScheduler(g, initial, maxConcurrency, opts.StepTimeout, sink, opts.Store, opts.ThreadID, mtr)
	sched.runID = opts.RunID

	if opts.Resume && opts.Store != nil {
		if err := sched.resumeFrom(ctx, opts.Store, opts.ThreadID); err != nil {
			return Result{}, err
		}
	}

	sink.Emit(emit.Event{Type: emit.WorkflowStart, Timestamp: now(), RunID: opts.RunID})

	status := sched.loop(ctx)

	sink.Emit(emit.Event{
		Type: emit.WorkflowEnd, Timestamp: now(), RunID: opts.RunID,
		Data: map[string]any{"status": status},
	})
	_ = sink.Flush(ctx)

	return Result{State: sched.stateSnapshot(), Status: status}, nil
}

func now() time.Time { return time.Now() }

// scheduler holds the mutable bookkeeping for one run: the current state
// (guarded by mu), in-degree counts, completion tracking, and the
// self-loop iteration counters.
type scheduler struct {
	g              *compiler.Graph
	maxConcurrency int
	stepTimeout    time.Duration
	sink           emit.Sink
	checkpoint     store.Store
	threadID       string
	runID          string
	metrics        *metrics.Collector

	mu         sync.Mutex
	run        state.Run
	inDegree   map[string]int
	done       map[string]bool
	iterations map[string]int
	stepCount  int
}

func newScheduler(g *compiler.Graph, initial state.Run, maxConcurrency int, stepTimeout time.Duration, sink emit.Sink, checkpoint store.Store, threadID string, mtr *metrics.Collector) *scheduler {
	inDegree := make(map[string]int, len(g.Steps))
	for name, node := range g.Steps {
		inDegree[name] = len(node.DependsOn)
	}
	return &scheduler{
		g: g, maxConcurrency: maxConcurrency, stepTimeout: stepTimeout,
		sink: sink, checkpoint: checkpoint, threadID: threadID, metrics: mtr,
		run: initial, inDegree: inDegree,
		done: make(map[string]bool), iterations: make(map[string]int),
	}
}

func (s *scheduler) stateSnapshot() state.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

// resumeFrom rebuilds in-degree/done bookkeeping from the latest snapshot:
// any step already recorded as terminal (success/failed/skipped) is marked
// done and its direct dependents' in-degree decremented as if it had just
// completed.
func (s *scheduler) resumeFrom(ctx context.Context, st store.Store, threadID string) error {
	snap, ok, err := st.Get(ctx, threadID)
	if err != nil {
		return fmt.Errorf("exec: loading checkpoint: %w", err)
	}
	if !ok {
		return nil
	}
	s.run = snap.State
	for name, stepState := range snap.State.Steps {
		if isTerminal(stepState.Status) {
			s.markDoneLocked(name)
		}
	}
	return nil
}

func isTerminal(st state.Status) bool {
	switch st {
	case state.StatusSuccess, state.StatusFailed, state.StatusSkipped, state.StatusValidation:
		return true
	default:
		return false
	}
}

func (s *scheduler) markDoneLocked(name string) {
	if s.done[name] {
		return
	}
	s.done[name] = true
	for _, dep := range s.g.Dependents[name] {
		s.inDegree[dep]--
	}
}

// loop drives the Kahn scheduling loop and returns the terminal run status.
func (s *scheduler) loop(ctx context.Context) string {
	ready := make([]string, 0, len(s.g.Roots))
	s.mu.Lock()
	for _, name := range s.g.Roots {
		if !s.done[name] {
			ready = append(ready, name)
		}
	}
	// On a resumed run, non-root steps whose dependencies all finished
	// before the snapshot are ready now as well.
	for name, node := range s.g.Steps {
		if len(node.DependsOn) == 0 || s.done[name] || s.inDegree[name] > 0 {
			continue
		}
		if s.gatePasses(name) {
			ready = append(ready, name)
		} else {
			s.skipLocked(name, "when condition false")
		}
	}
	s.mu.Unlock()

	running := 0
	results := make(chan nodeOutcome, len(s.g.Steps)+1)
	cancelled := false

	for {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}

		s.metrics.SetQueueDepth(s.runID, len(ready))

		for !cancelled && len(ready) > 0 && running < s.maxConcurrency {
			name := ready[0]
			ready = ready[1:]
			running++
			s.metrics.SetInflightSteps(s.runID, running)
			go s.spawn(ctx, name, results)
		}

		if running == 0 {
			if cancelled {
				break
			}
			if !s.allTerminal() {
				s.finalizeUnreachable()
			}
			break
		}

		outcome := <-results
		running--
		s.metrics.SetInflightSteps(s.runID, running)
		newlyReady := s.complete(outcome)
		ready = append(ready, newlyReady...)

		if s.checkpoint != nil {
			_ = s.checkpoint.Put(ctx, store.Snapshot{
				ThreadID: s.threadID, Step: s.stepCount, State: s.stateSnapshot(), Timestamp: time.Now(),
			})
		}
	}

	if cancelled {
		return StatusCancelled
	}
	return s.overallStatus()
}

func (s *scheduler) spawn(ctx context.Context, name string, results chan<- nodeOutcome) {
	node := s.g.Steps[name]

	s.mu.Lock()
	run := s.run
	iteration := s.iterations[name]
	s.mu.Unlock()

	s.sink.Emit(emit.Event{Type: emit.StepStart, Timestamp: now(), RunID: s.runID, StepName: name})
	dispatched := time.Now()

	nodeCtx := ctx
	var cancel context.CancelFunc
	if s.stepTimeout > 0 {
		nodeCtx, cancel = context.WithTimeout(ctx, s.stepTimeout)
		defer cancel()
	}

	delta := node.Run(nodeCtx, run)
	if nodeCtx.Err() == context.DeadlineExceeded && delta.Step != nil {
		delta.Step.Status = state.StatusFailed
		delta.Step.Error = "step timed out"
	}
	if delta.Step != nil {
		delta.Step.Iteration = iteration
		for _, attempt := range delta.Step.Meta.Attempts {
			outcome := "error"
			if attempt.Retryable {
				outcome = "retryable_error"
			}
			s.metrics.IncModelAttempt(s.runID, name, outcome)
		}
	}

	status := stepStatus(delta)
	s.metrics.RecordStepLatency(s.runID, name, time.Since(dispatched), status)

	s.sink.Emit(emit.Event{
		Type: emit.StepComplete, Timestamp: now(), RunID: s.runID, StepName: name,
		Data: map[string]any{"status": status},
	})

	select {
	case results <- nodeOutcome{name: name, delta: delta}:
	case <-ctx.Done():
	}
}

func stepStatus(delta state.Delta) string {
	if delta.Step == nil {
		return ""
	}
	return string(delta.Step.Status)
}

// complete applies one node's outcome under the state lock and returns
// the steps newly made ready (in-degree reached zero and, for a
// conditional dependent, its `when` gate evaluated true).
func (s *scheduler) complete(outcome nodeOutcome) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := outcome.name
	s.stepCount++
	s.run = state.Merge(s.run, outcome.delta)

	node := s.g.Steps[name]
	if node.LoopUntil != nil && (outcome.delta.Step == nil || outcome.delta.Step.Status == state.StatusSuccess) {
		s.iterations[name]++
		// The recorded iteration counts completions (1-based), per spec
		// 4.5.6: incremented each time the node records a result. spawn
		// stamped the pre-run (0-based) count; overwrite it here now that
		// this completion has actually been recorded.
		if st, ok := s.run.Steps[name]; ok {
			st.Iteration = s.iterations[name]
			s.run.Steps[name] = st
		}
		view := viewOf(s.run)
		loopAgain := !node.LoopUntil.Bool(view) && s.iterations[name] < node.LoopMax
		if loopAgain {
			return []string{name}
		}
	}

	s.done[name] = true

	failed := outcome.delta.Step != nil && outcome.delta.Step.Status == state.StatusFailed
	if failed {
		s.cascadeSkipLocked(name)
		return nil
	}

	var newlyReady []string
	for _, dep := range s.g.Dependents[name] {
		if s.done[dep] {
			continue
		}
		s.inDegree[dep]--
		if s.inDegree[dep] > 0 {
			continue
		}
		if s.gatePasses(dep) {
			newlyReady = append(newlyReady, dep)
		} else {
			s.skipLocked(dep, "when condition false")
		}
	}
	return newlyReady
}

// gatePasses evaluates a dependent step's own `when` expression (if any)
// against the current state - the conditional-dependency routing of spec
// section 4.5.
func (s *scheduler) gatePasses(name string) bool {
	node := s.g.Steps[name]
	if node.When == nil {
		return true
	}
	return node.When.Bool(viewOf(s.run))
}

// skipLocked marks a single step skipped because its own `when` gate
// evaluated false. It does NOT touch the step's dependents: a gate-skip
// is not a failure, so it must not cascade per spec 4.6.3 (only a
// failed step cascades). A dependent that needed this step still has an
// unsatisfied in-degree and falls through to finalizeUnreachable, which
// marks it "unmet dependencies" rather than "when condition false".
func (s *scheduler) skipLocked(name, reason string) {
	if s.done[name] {
		return
	}
	s.done[name] = true
	s.metrics.IncStepSkipped(s.runID, reason)
	s.run = state.Merge(s.run, state.Delta{
		Step: &state.StepState{Name: name, Status: state.StatusSkipped, Error: reason},
	})
	s.sink.Emit(emit.Event{
		Type: emit.StepComplete, Timestamp: now(), RunID: s.runID, StepName: name,
		Data: map[string]any{"status": "skipped", "reason": reason},
	})
}

// cascadeSkipLocked performs the BFS skip of every transitive dependent of
// a failed step, per spec 4.6 step 3.
func (s *scheduler) cascadeSkipLocked(failed string) {
	queue := append([]string{}, s.g.Dependents[failed]...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if s.done[name] {
			continue
		}
		s.done[name] = true
		s.metrics.IncStepSkipped(s.runID, "dependency failed")
		s.run = state.Merge(s.run, state.Delta{
			Step: &state.StepState{Name: name, Status: state.StatusSkipped, Error: "dependency failed"},
		})
		s.sink.Emit(emit.Event{
			Type: emit.StepComplete, Timestamp: now(), RunID: s.runID, StepName: name,
			Data: map[string]any{"status": "skipped", "reason": "dependency failed"},
		})
		queue = append(queue, s.g.Dependents[name]...)
	}
}

func (s *scheduler) allTerminal() bool {
	for name := range s.g.Steps {
		if !s.done[name] {
			return false
		}
	}
	return true
}

// finalizeUnreachable marks every not-yet-done step skipped with reason
// "unmet dependencies", per spec 4.6 step 5 (the ready queue emptied with
// no nodes running and unfinished steps remain - an unreachable region).
func (s *scheduler) finalizeUnreachable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.g.Steps {
		if s.done[name] {
			continue
		}
		s.done[name] = true
		s.metrics.IncStepSkipped(s.runID, "unmet dependencies")
		s.run = state.Merge(s.run, state.Delta{
			Step: &state.StepState{Name: name, Status: state.StatusSkipped, Error: "unmet dependencies"},
		})
		s.sink.Emit(emit.Event{
			Type: emit.StepComplete, Timestamp: now(), RunID: s.runID, StepName: name,
			Data: map[string]any{"status": "skipped", "reason": "unmet dependencies"},
		})
	}
}

func (s *scheduler) overallStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	anyFailed := false
	anySkipped := false
	for _, st := range s.run.Steps {
		switch st.Status {
		case state.StatusFailed:
			anyFailed = true
		case state.StatusSkipped:
			anySkipped = true
		}
	}
	switch {
	case anyFailed || anySkipped:
		return StatusPartial
	default:
		return StatusSuccess
	}
}
