// Package expr implements the `${...}` reference and boolean-expression
// sublanguage used for step inputs, `when` gates, `loop_until` conditions,
// and declared workflow outputs.
//
// Expressions are parsed once at workflow-compile time into an AST and
// evaluated against a live View on every step/gate check. A missing
// attribute anywhere along a dotted path yields null (or false for a
// boolean gate) instead of raising — this lets a `when` condition
// reference a step that produced only partial output without crashing the
// run.
package expr

import "github.com/dshills/flowgraph/workflow/state"

// StepView is the read-only projection of a StepState exposed to
// expressions: status and outputs, nothing else.
type StepView struct {
	Status  string
	Outputs map[string]any
}

// View is the root namespace expressions resolve dotted paths against:
// inputs.*, steps.<name>.status, steps.<name>.outputs.*, context.*.
type View struct {
	Inputs  map[string]any
	Context map[string]any
	Steps   map[string]StepView
}

// NewView projects a run state into the read-only shape expressions see.
func NewView(run state.Run) View {
	steps := make(map[string]StepView, len(run.Steps))
	for name, s := range run.Steps {
		steps[name] = StepView{Status: string(s.Status), Outputs: s.Outputs}
	}
	return View{Inputs: run.Inputs, Context: run.Context, Steps: steps}
}

// resolvePath walks a dotted path against the view. The first segment
// selects the root (inputs/steps/context); every subsequent segment
// indexes a map or, for a StepView, a named field (status/outputs). A nil
// value or a path that runs into a non-navigable value short-circuits to
// nil — this is the "missing attribute yields null" rule from spec §4.1.
func (v View) resolvePath(path []string) any {
	if len(path) == 0 {
		return nil
	}
	switch path[0] {
	case "inputs":
		return navigate(v.Inputs, path[1:])
	case "context":
		return navigate(v.Context, path[1:])
	case "steps":
		if len(path) < 2 {
			return nil
		}
		sv, ok := v.Steps[path[1]]
		if !ok {
			return nil
		}
		return navigateStep(sv, path[2:])
	default:
		// Unknown root: treat the whole path as a context lookup so bare
		// identifiers in boolean expressions (e.g. a substituted literal's
		// own sub-path) still resolve sensibly.
		return navigate(v.Context, path)
	}
}

func navigateStep(sv StepView, rest []string) any {
	if len(rest) == 0 {
		return map[string]any{"status": sv.Status, "outputs": sv.Outputs}
	}
	switch rest[0] {
	case "status":
		if len(rest) == 1 {
			return sv.Status
		}
		return nil
	case "outputs":
		return navigate(sv.Outputs, rest[1:])
	default:
		return nil
	}
}

// navigate walks successive map keys, short-circuiting to nil the moment
// the current value isn't a map[string]any or the key is absent.
func navigate(root any, path []string) any {
	cur := root
	for _, key := range path {
		if cur == nil {
			return nil
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}
