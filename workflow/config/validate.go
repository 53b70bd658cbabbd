package config

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError reports one or more malformed-config problems. Multiple
// violations are collected into a single error per spec section 7 ("a
// validation error containing every failing field").
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: validation failed: %s", strings.Join(e.Fields, "; "))
}

func (e *ValidationError) add(format string, args ...any) {
	e.Fields = append(e.Fields, fmt.Sprintf(format, args...))
}

// Validate checks structural invariants that don't depend on caller-supplied
// input values: the evaluation rubric's weights and criterion references.
// Per-run input validation (required/enum/default) happens in the runner
// against the actual invocation inputs, not here.
func Validate(wf *Workflow) error {
	verr := &ValidationError{}

	if wf.Evaluation != nil {
		validateEvaluation(wf.Evaluation, verr)
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func validateEvaluation(ev *Evaluation, verr *ValidationError) {
	declared := make(map[string]bool, len(ev.Criteria))
	for _, c := range ev.Criteria {
		declared[c.Name] = true
		if c.Weight < 0 {
			verr.add("evaluation: criterion %q has negative weight", c.Name)
		}
	}

	if len(ev.Weights) > 0 {
		sum := 0.0
		for name, w := range ev.Weights {
			if w <= 0 {
				verr.add("evaluation: weight for %q must be positive", name)
			}
			sum += w
			if len(declared) > 0 && !declared[name] {
				verr.add("evaluation: weight references undeclared criterion %q", name)
			}
		}
		if math.Abs(sum-1.0) > 0.01 {
			verr.add("evaluation: weights must sum to 1.0 (+/- 0.01), got %.4f", sum)
		}
	}
}

// ValidateInputs checks a caller-supplied input map against the workflow's
// declared InputSpecs: required inputs without defaults must be present,
// enum inputs must match one of the declared values, and missing inputs
// with defaults are filled in. Returns the filled map plus an error
// collecting every failing field, per spec section 4.9 step 2.
func ValidateInputs(wf *Workflow, inputs map[string]any) (map[string]any, error) {
	verr := &ValidationError{}
	filled := make(map[string]any, len(inputs))
	for k, v := range inputs {
		filled[k] = v
	}

	for name, spec := range wf.Inputs {
		v, present := filled[name]
		if !present {
			if spec.Default != nil {
				filled[name] = spec.Default
				continue
			}
			if spec.Required {
				verr.add("input %q is required", name)
			}
			continue
		}
		if len(spec.Enum) > 0 && !enumContains(spec.Enum, v) {
			verr.add("input %q must be one of %v, got %v", name, spec.Enum, v)
		}
	}

	if len(verr.Fields) > 0 {
		return filled, verr
	}
	return filled, nil
}

func enumContains(enum []any, v any) bool {
	for _, e := range enum {
		if fmt.Sprint(e) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}
