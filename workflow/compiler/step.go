// Package compiler turns a parsed workflow config (workflow/config) into an
// executable graph of step nodes (spec sections 4.4 and 4.5): a step
// compiler that produces one node function per step, and a graph compiler
// that wires dependency and self-loop routing between them.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/flowgraph/workflow/config"
	"github.com/dshills/flowgraph/workflow/expr"
	"github.com/dshills/flowgraph/workflow/model"
	"github.com/dshills/flowgraph/workflow/state"
	"github.com/dshills/flowgraph/workflow/tool"
)

// StepNode is one compiled, runnable node of the graph: a name, its
// dependency names (for the executor's Kahn scheduling), optional
// conditional-gate and self-loop expressions, and the node function
// itself.
type StepNode struct {
	Name      string
	DependsOn []string
	When      *expr.Expression
	LoopUntil *expr.Expression
	LoopMax   int

	// Run executes the node against the run state at the time it was
	// scheduled and returns the delta to merge. It never returns a Go
	// error for ordinary step failure - failure is recorded in the
	// returned StepState (Status/Error), per spec section 7's policy
	// that the executor never lets an unhandled exception escape a run.
	Run func(ctx context.Context, run state.Run) state.Delta
}

// StepDeps bundles the shared collaborators every compiled step needs:
// the model registry/failover machinery, the provider factory, the tool
// registry, the prompt-file source, and the tier-0 deterministic registry.
type StepDeps struct {
	Models       *model.Registry
	Factory      ModelFactory
	Tools        *tool.Registry
	Prompts      PromptSource
	Tier0        *DeterministicRegistry
	ValidateOnly bool
}

// CompileStep compiles one step config into a StepNode. cfg is the step's
// own config; wf is the enclosing workflow (needed for nothing beyond
// step-local compilation today, but kept for symmetry with spec 4.4's
// "step config and the enclosing workflow config" input).
func CompileStep(cfg config.Step, wf *config.Workflow, deps StepDeps, cache *agentCache) (*StepNode, error) {
	node := &StepNode{
		Name:      cfg.Name,
		DependsOn: cfg.DependsOn,
		LoopMax:   cfg.LoopMax,
	}

	if cfg.When != "" {
		when, err := expr.Compile(cfg.When)
		if err != nil {
			return nil, fmt.Errorf("compiler: step %q: compiling when: %w", cfg.Name, err)
		}
		node.When = when
	}
	if cfg.LoopUntil != "" {
		loopUntil, err := expr.Compile(cfg.LoopUntil)
		if err != nil {
			return nil, fmt.Errorf("compiler: step %q: compiling loop_until: %w", cfg.Name, err)
		}
		node.LoopUntil = loopUntil
		if node.LoopMax <= 0 {
			node.LoopMax = 1
		}
	}

	inputExprs := make(map[string]*expr.Expression, len(cfg.Inputs))
	for local, raw := range cfg.Inputs {
		compiled, err := expr.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compiler: step %q: compiling input %q: %w", cfg.Name, local, err)
		}
		inputExprs[local] = compiled
	}

	if deps.ValidateOnly {
		node.Run = validationOnlyRun(cfg.Name)
		return node, nil
	}

	tier, role, tierErr := model.ParseTier(cfg.Agent)
	if tierErr != nil || tier == model.Tier0 {
		node.Run = compileTier0(cfg, inputExprs, deps.Tier0)
		return node, nil
	}

	candidates, err := deps.Models.Candidates(tier, cfg.ModelOverride)
	if err != nil {
		return nil, fmt.Errorf("compiler: step %q: resolving model candidates: %w", cfg.Name, err)
	}

	node.Run = compileLLMStep(cfg, inputExprs, int(tier), role, candidates, cache)
	return node, nil
}

func validationOnlyRun(name string) func(context.Context, state.Run) state.Delta {
	return func(_ context.Context, _ state.Run) state.Delta {
		now := time.Now()
		return state.Delta{
			Step: &state.StepState{
				Name: name, Status: state.StatusValidation,
				Outputs: map[string]any{}, StartedAt: now, EndedAt: now,
			},
			CurrentStep: name,
		}
	}
}

func compileTier0(cfg config.Step, inputExprs map[string]*expr.Expression, registry *DeterministicRegistry) func(context.Context, state.Run) state.Delta {
	return func(ctx context.Context, run state.Run) state.Delta {
		started := time.Now()
		view := expr.NewView(run)
		inputs := resolveInputs(inputExprs, view)

		fn, ok := registry.Lookup(cfg.Agent)
		if !ok {
			return deltaForSuccess(cfg, map[string]any{}, nil, started)
		}

		outputs, err := fn(ctx, inputs)
		if err != nil {
			return deltaForFailure(cfg, started, fmt.Sprintf("tier0 step failed: %v", err))
		}
		return deltaForSuccess(cfg, outputs, nil, started)
	}
}

func compileLLMStep(cfg config.Step, inputExprs map[string]*expr.Expression, tier int, role string, candidates []string, cache *agentCache) func(context.Context, state.Run) state.Delta {
	return func(ctx context.Context, run state.Run) state.Delta {
		started := time.Now()
		view := expr.NewView(run)
		inputs := resolveInputs(inputExprs, view)
		prompt := buildPrompt(cfg, inputs)

		var attempts []state.ModelAttempt
		for _, modelID := range candidates {
			a, err := cache.get(modelID, role, tier, cfg.Tools)
			if err != nil {
				attempts = append(attempts, state.ModelAttempt{Model: modelID, Error: err.Error(), Retryable: false})
				continue
			}

			out, err := a.invoke(ctx, prompt)
			if err != nil {
				retryable := model.Classify(err)
				attempts = append(attempts, state.ModelAttempt{Model: modelID, Error: err.Error(), Retryable: retryable})
				continue
			}

			outputs := parseJSONWithFallback(out.Text)
			if outputs == nil {
				outputs = map[string]any{}
			}
			outputs["raw_response"] = out.Text

			delta := deltaForSuccess(cfg, outputs, attempts, started)
			step := delta.Step
			step.Meta.Model = modelID
			step.Meta.PromptTokens = out.PromptTokens
			step.Meta.CompletionTokens = out.CompletionTokens
			return delta
		}

		var lastModel, lastErr string
		if len(attempts) > 0 {
			last := attempts[len(attempts)-1]
			lastModel, lastErr = last.Model, last.Error
		}
		msg := fmt.Sprintf("All model attempts failed (last model=%s: %s)", lastModel, lastErr)
		delta := deltaForFailure(cfg, started, msg)
		delta.Step.Meta.Attempts = attempts
		delta.Errors = []string{msg}
		return delta
	}
}

func resolveInputs(inputExprs map[string]*expr.Expression, view expr.View) map[string]any {
	inputs := make(map[string]any, len(inputExprs))
	for local, compiled := range inputExprs {
		inputs[local] = compiled.Resolve(view)
	}
	return inputs
}

func buildPrompt(cfg config.Step, inputs map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step: %s\n", cfg.Name)
	if cfg.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", cfg.Description)
	}
	if len(inputs) > 0 {
		b.WriteString("Inputs:\n")
		pretty, err := json.MarshalIndent(inputs, "", "  ")
		if err == nil {
			b.Write(pretty)
			b.WriteString("\n")
		}
	}
	if len(cfg.Outputs) > 0 {
		keys := make([]string, 0, len(cfg.Outputs))
		for local := range cfg.Outputs {
			keys = append(keys, local)
		}
		fmt.Fprintf(&b, "Return a JSON object with these keys: %s\n", strings.Join(keys, ", "))
	}
	return b.String()
}

func deltaForSuccess(cfg config.Step, outputs map[string]any, attempts []state.ModelAttempt, started time.Time) state.Delta {
	ctxUpdates := make(map[string]any, len(cfg.Outputs))
	for local, key := range cfg.Outputs {
		if v, ok := outputs[local]; ok {
			ctxUpdates[key] = v
		}
	}
	return state.Delta{
		Context: ctxUpdates,
		Step: &state.StepState{
			Name: cfg.Name, Status: state.StatusSuccess,
			Outputs:   outputs,
			StartedAt: started, EndedAt: time.Now(),
			Meta: state.StepMeta{Attempts: attempts},
		},
		CurrentStep: cfg.Name,
	}
}

func deltaForFailure(cfg config.Step, started time.Time, errMsg string) state.Delta {
	return state.Delta{
		Step: &state.StepState{
			Name: cfg.Name, Status: state.StatusFailed, Error: errMsg,
			Outputs:   map[string]any{},
			StartedAt: started, EndedAt: time.Now(),
		},
		CurrentStep: cfg.Name,
	}
}
