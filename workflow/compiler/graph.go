package compiler

import (
	"fmt"

	"github.com/dshills/flowgraph/workflow/config"
)

// Graph is the compiled, executable form of a workflow: one StepNode per
// declared step plus the reverse-dependency index the executor's Kahn
// scheduler walks.
type Graph struct {
	Steps map[string]*StepNode

	// Dependents maps a step name to the steps that name it in depends_on
	// - the executor's cascade-skip and in-degree-decrement walk.
	Dependents map[string][]string

	// Roots are the steps with no dependencies - the initial ready queue.
	Roots []string
}

// CompileGraph implements spec section 4.5: reject an empty step list, add
// one node per step, validate every dependency name is known, and compute
// the start-wiring (roots) and reverse-dependency index the executor needs
// for Kahn scheduling. Per-step conditional gating (`when`) and self-loop
// (`loop_until`) are carried on the StepNode itself rather than as
// separate router nodes, since the executor evaluates them directly at
// the moments section 4.5 describes (on in-degree reaching zero, and on a
// self-looping node's own completion).
func CompileGraph(wf *config.Workflow, deps StepDeps) (*Graph, error) {
	if len(wf.Steps) == 0 {
		return nil, fmt.Errorf("compiler: workflow %q declares no steps", wf.Name)
	}

	known := make(map[string]bool, len(wf.Steps))
	for _, s := range wf.Steps {
		known[s.Name] = true
	}
	for _, s := range wf.Steps {
		for _, dep := range s.DependsOn {
			if !known[dep] {
				return nil, fmt.Errorf("compiler: step %q depends on unknown step %q", s.Name, dep)
			}
		}
	}

	cache := newAgentCache(deps.Factory, deps.Prompts, deps.Tools)

	g := &Graph{
		Steps:      make(map[string]*StepNode, len(wf.Steps)),
		Dependents: make(map[string][]string),
	}
	for _, s := range wf.Steps {
		node, err := CompileStep(s, wf, deps, cache)
		if err != nil {
			return nil, err
		}
		g.Steps[s.Name] = node
		if len(s.DependsOn) == 0 {
			g.Roots = append(g.Roots, s.Name)
		}
		for _, dep := range s.DependsOn {
			g.Dependents[dep] = append(g.Dependents[dep], s.Name)
		}
	}

	return g, nil
}
