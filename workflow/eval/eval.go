// Package eval implements the three-layer evaluation pipeline of spec
// section 4.10: objective formulas, an optional LLM judge with bias
// mitigation, and an advisory text-overlap/efficiency signal, composited
// into a graded scorecard subject to hard gates and criterion floors.
package eval

import (
	"fmt"
	"strings"

	"github.com/dshills/flowgraph/workflow/runner"
)

// Sample is one dataset example a run is evaluated against.
type Sample struct {
	Inputs         map[string]any
	ExpectedOutput string
}

// CriterionScore is one criterion's contribution to the scorecard.
type CriterionScore struct {
	Name      string
	Raw       float64 // [0, 100]
	Normalized float64 // [0, 1]
	Source    string  // "objective", "judge", "advisory"
}

// Scorecard is the full structured evaluation result.
type Scorecard struct {
	Criteria        []CriterionScore
	Composite       float64
	Grade           string
	GateFailures    []string
	FloorViolations []string

	// PairwiseInconsistencies names criteria where the judge's forward
	// and swapped passes disagreed by more than 1.0 points - logged but
	// not itself a hard gate.
	PairwiseInconsistencies []string
}

// Weights are the per-layer composite weights, renormalized across
// whichever layers actually ran.
type Weights struct {
	Objective float64
	Judge     float64
	Advisory  float64
}

// DefaultWeights matches spec section 4.10's stated defaults.
var DefaultWeights = Weights{Objective: 0.60, Judge: 0.25, Advisory: 0.15}

// Judge is the optional LLM judge layer's contract: given the candidate
// and expected outputs plus the criterion names (already shuffled by the
// caller), return a score in [1, 5] per criterion with supporting
// evidence text.
type Judge interface {
	Score(candidateOutput, expectedOutput string, criteria []string) (map[string]JudgeVerdict, error)
}

// JudgeVerdict is one criterion's judge response.
type JudgeVerdict struct {
	Score    float64 // 1..5
	Evidence string
}

// Evaluate runs the full pipeline against a completed workflow result and
// an optional sample, with an optional judge. Hard gates and criterion
// floors are applied before computing the final letter grade.
func Evaluate(result runner.Result, sample *Sample, weights Weights, judge Judge, requiredOutputs []string) (Scorecard, error) {
	sc := Scorecard{}

	gateFailures := checkHardGates(result, sample, requiredOutputs)
	sc.GateFailures = gateFailures

	objective := objectiveScores(result, sample)
	sc.Criteria = append(sc.Criteria, objective...)

	var judgeScores []CriterionScore
	if judge != nil && sample != nil {
		var err error
		var inconsistencies []string
		judgeScores, inconsistencies, err = judgeLayer(judge, result, *sample)
		if err != nil {
			return sc, fmt.Errorf("eval: judge layer: %w", err)
		}
		sc.Criteria = append(sc.Criteria, judgeScores...)
		sc.PairwiseInconsistencies = inconsistencies
	}

	advisory := advisoryScores(result, sample)
	sc.Criteria = append(sc.Criteria, advisory...)

	sc.Composite = composite(objective, judgeScores, advisory, weights)
	sc.FloorViolations = criterionFloors(sc.Criteria)
	sc.Grade = grade(sc.Composite, sc.FloorViolations, gateFailures)

	return sc, nil
}

func checkHardGates(result runner.Result, sample *Sample, requiredOutputs []string) []string {
	var failures []string
	if result.Status != "success" {
		failures = append(failures, "overall status is not success")
	}
	for _, name := range requiredOutputs {
		v, ok := result.Outputs[name]
		if !ok || v == nil {
			failures = append(failures, fmt.Sprintf("required output %q is missing or null", name))
		}
	}
	for _, st := range result.State.Steps {
		if st.Status == "failed" {
			failures = append(failures, fmt.Sprintf("step %q failed", st.Name))
		}
	}
	if sample != nil {
		// A sample whose inputs don't cover the run's declared inputs
		// can't satisfy the workflow; this is approximated by checking
		// the sample actually supplied something for every key the run
		// consumed.
		for k := range result.State.Inputs {
			if _, ok := sample.Inputs[k]; !ok {
				failures = append(failures, fmt.Sprintf("dataset sample does not supply required input %q", k))
			}
		}
	}
	return failures
}

func grade(composite float64, floorViolations, gateFailures []string) string {
	if len(gateFailures) > 0 {
		return "F"
	}
	letter := letterFor(composite)
	if len(floorViolations) > 0 && letter != "F" && letter != "D" {
		return "D"
	}
	return letter
}

func letterFor(composite float64) string {
	switch {
	case composite >= 0.90:
		return "A"
	case composite >= 0.80:
		return "B"
	case composite >= 0.70:
		return "C"
	case composite >= 0.60:
		return "D"
	default:
		return "F"
	}
}

func criterionFloors(scores []CriterionScore) []string {
	var violations []string
	for _, s := range scores {
		name := strings.ToLower(s.Name)
		switch {
		case (name == "correctness" || name == "correctness_rubric") && s.Normalized < 0.70:
			violations = append(violations, fmt.Sprintf("%s below 0.70 floor (%.2f)", s.Name, s.Normalized))
		case isSafetyFamily(name) && s.Normalized < 0.80:
			violations = append(violations, fmt.Sprintf("%s below 0.80 floor (%.2f)", s.Name, s.Normalized))
		}
	}
	return violations
}

func isSafetyFamily(name string) bool {
	switch name {
	case "safety_validation", "validation", "safety", "code_quality":
		return true
	default:
		return false
	}
}

func composite(objective, judge, advisory []CriterionScore, weights Weights) float64 {
	type layer struct {
		score  float64
		weight float64
		active bool
	}
	layers := []layer{
		{score: meanNormalized(objective), weight: weights.Objective, active: len(objective) > 0},
		{score: meanNormalized(judge), weight: weights.Judge, active: len(judge) > 0},
		{score: meanNormalized(advisory), weight: weights.Advisory, active: len(advisory) > 0},
	}

	totalWeight := 0.0
	for _, l := range layers {
		if l.active {
			totalWeight += l.weight
		}
	}
	if totalWeight == 0 {
		return 0
	}

	sum := 0.0
	for _, l := range layers {
		if l.active {
			sum += l.score * (l.weight / totalWeight)
		}
	}
	return sum
}

func meanNormalized(scores []CriterionScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s.Normalized
	}
	return sum / float64(len(scores))
}

// ValidateWeights checks the rubric weights validation rule of spec
// section 4.10: all positive, summing to 1.0 +/- 0.01, and (when criteria
// are explicit) a subset of declared criterion names.
func ValidateWeights(weights map[string]float64, declared []string) error {
	declaredSet := make(map[string]bool, len(declared))
	for _, d := range declared {
		declaredSet[d] = true
	}
	sum := 0.0
	for name, w := range weights {
		if w <= 0 {
			return fmt.Errorf("eval: weight for %q must be positive", name)
		}
		if len(declaredSet) > 0 && !declaredSet[name] {
			return fmt.Errorf("eval: weight references undeclared criterion %q", name)
		}
		sum += w
	}
	if diff := sum - 1.0; diff > 0.01 || diff < -0.01 {
		return fmt.Errorf("eval: weights must sum to 1.0 (+/- 0.01), got %.4f", sum)
	}
	return nil
}
