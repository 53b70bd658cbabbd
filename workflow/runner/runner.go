// Package runner is the façade of spec section 4.9: load a workflow config,
// validate caller inputs, compile (cached) or fetch the compiled graph,
// execute it, resolve declared outputs, and aggregate run metadata into a
// single Result.
package runner

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/flowgraph/workflow/compiler"
	"github.com/dshills/flowgraph/workflow/config"
	"github.com/dshills/flowgraph/workflow/emit"
	"github.com/dshills/flowgraph/workflow/exec"
	"github.com/dshills/flowgraph/workflow/expr"
	"github.com/dshills/flowgraph/workflow/metrics"
	"github.com/dshills/flowgraph/workflow/model"
	"github.com/dshills/flowgraph/workflow/state"
	"github.com/dshills/flowgraph/workflow/store"
	"github.com/dshills/flowgraph/workflow/tool"
)

// Request is a single workflow invocation's parameters.
type Request struct {
	WorkflowPath string
	Inputs       map[string]any
	ThreadID     string
	Resume       bool
}

// Result is what the runner hands back to a caller (spec section 4.9 step
// 8), enumerating step outcomes alongside aggregate metadata.
type Result struct {
	Status            string
	Outputs           map[string]any
	UnresolvedOutputs []string
	State             state.Run
	TotalPromptTokens int
	TotalCompletionTokens int
	ModelsUsed        []string
}

// Runner owns the collaborators every compiled graph needs and caches
// loaded configs and compiled graphs by workflow path alone. A graph keeps
// the Models, Factory, Tools, Prompts and Tier0 in place when its path was
// first compiled; later changes to those fields do not invalidate it.
// Sink, Store and Metrics are read afresh on every Run.
type Runner struct {
	Models  *model.Registry
	Factory compiler.ModelFactory
	Tools   *tool.Registry
	Prompts compiler.PromptSource
	Tier0   *compiler.DeterministicRegistry
	Sink    emit.Sink
	Store   store.Store
	Metrics *metrics.Collector

	MaxConcurrency int
	StepTimeout    time.Duration

	configCache *lru.Cache[string, *config.Workflow]
	graphCache  *lru.Cache[string, *compiler.Graph]
}

// New constructs a Runner with bounded compile caches. cacheSize bounds the
// number of distinct workflow configs/graphs kept resident; 0 selects a
// sensible default.
func New(cacheSize int) *Runner {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	configCache, _ := lru.New[string, *config.Workflow](cacheSize)
	graphCache, _ := lru.New[string, *compiler.Graph](cacheSize)
	return &Runner{configCache: configCache, graphCache: graphCache}
}

// Run executes one workflow invocation end to end.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	wf, err := r.loadConfig(req.WorkflowPath)
	if err != nil {
		return Result{}, err
	}

	filledInputs, err := config.ValidateInputs(wf, req.Inputs)
	if err != nil {
		return Result{}, err
	}

	graph, err := r.compileGraph(req.WorkflowPath, wf)
	if err != nil {
		return Result{}, err
	}

	run := state.New()
	run.Inputs = filledInputs
	run.Context["workflow_run_id"] = req.ThreadID

	execResult, err := exec.Run(ctx, graph, run, exec.Options{
		MaxConcurrency: r.MaxConcurrency,
		StepTimeout:    r.StepTimeout,
		Sink:           r.Sink,
		Store:          r.Store,
		ThreadID:       req.ThreadID,
		RunID:          req.ThreadID,
		Resume:         req.Resume,
		Metrics:        r.Metrics,
	})
	if err != nil {
		return Result{
			Status: exec.StatusFailed,
			State:  run,
		}, nil
	}

	return r.buildResult(wf, execResult), nil
}

func (r *Runner) loadConfig(path string) (*config.Workflow, error) {
	if wf, ok := r.configCache.Get(path); ok {
		return wf, nil
	}
	wf, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	r.configCache.Add(path, wf)
	return wf, nil
}

func (r *Runner) compileGraph(path string, wf *config.Workflow) (*compiler.Graph, error) {
	key := path
	if g, ok := r.graphCache.Get(key); ok {
		return g, nil
	}
	g, err := compiler.CompileGraph(wf, compiler.StepDeps{
		Models:  r.Models,
		Factory: r.Factory,
		Tools:   r.Tools,
		Prompts: r.Prompts,
		Tier0:   r.Tier0,
	})
	if err != nil {
		return nil, err
	}
	r.graphCache.Add(key, g)
	return g, nil
}

func (r *Runner) buildResult(wf *config.Workflow, execResult exec.Result) Result {
	view := expr.NewView(execResult.State)
	outputs := make(map[string]any, len(wf.Outputs))
	var unresolved []string

	for name, spec := range wf.Outputs {
		compiled, err := expr.Compile(spec.From)
		if err != nil {
			unresolved = append(unresolved, name)
			continue
		}
		val := compiled.Resolve(view)
		if val == nil && !spec.Optional {
			unresolved = append(unresolved, name)
			continue
		}
		outputs[name] = val
	}

	result := Result{
		Status:            execResult.Status,
		Outputs:           outputs,
		UnresolvedOutputs: unresolved,
		State:             execResult.State,
	}

	modelsSeen := make(map[string]bool)
	for _, st := range execResult.State.Steps {
		result.TotalPromptTokens += st.Meta.PromptTokens
		result.TotalCompletionTokens += st.Meta.CompletionTokens
		if st.Meta.Model != "" && !modelsSeen[st.Meta.Model] {
			modelsSeen[st.Meta.Model] = true
			result.ModelsUsed = append(result.ModelsUsed, st.Meta.Model)
		}
	}
	return result
}

// Validate compiles wf in validation-only mode (no provider credentials
// required) purely to check graph shape, per spec section 4.4's
// validation-only compiler variant.
func (r *Runner) Validate(wf *config.Workflow) error {
	_, err := compiler.CompileGraph(wf, compiler.StepDeps{ValidateOnly: true, Tier0: compiler.NewDeterministicRegistry()})
	if err != nil {
		return fmt.Errorf("runner: validating workflow %q: %w", wf.Name, err)
	}
	return nil
}
