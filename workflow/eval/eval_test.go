package eval

import (
	"testing"
	"time"

	"github.com/dshills/flowgraph/workflow/runner"
	"github.com/dshills/flowgraph/workflow/state"
)

func successfulResult() runner.Result {
	started := time.Now()
	run := state.New()
	run.Steps["draft"] = state.StepState{
		Name: "draft", Status: state.StatusSuccess,
		Outputs:   map[string]any{"raw_response": "the quick brown fox jumps over the lazy dog"},
		StartedAt: started, EndedAt: started.Add(2 * time.Second),
	}
	return runner.Result{
		Status:  "success",
		Outputs: map[string]any{"summary": "the quick brown fox jumps over the lazy dog"},
		State:   run,
	}
}

func TestEvaluatePassesGatesOnSuccess(t *testing.T) {
	result := successfulResult()
	sc, err := Evaluate(result, nil, DefaultWeights, nil, []string{"summary"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(sc.GateFailures) != 0 {
		t.Fatalf("expected no gate failures, got %v", sc.GateFailures)
	}
	if sc.Grade == "F" {
		t.Fatalf("expected a non-F grade for an all-success run, got %s scorecard=%+v", sc.Grade, sc)
	}
}

func TestEvaluateFailsGateOnMissingRequiredOutput(t *testing.T) {
	result := successfulResult()
	sc, err := Evaluate(result, nil, DefaultWeights, nil, []string{"missing_output"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(sc.GateFailures) == 0 {
		t.Fatalf("expected gate failure for missing required output")
	}
	if sc.Grade != "F" {
		t.Fatalf("expected grade F on hard gate failure, got %s", sc.Grade)
	}
}

func TestEvaluateFailsGateOnFailedStep(t *testing.T) {
	result := successfulResult()
	result.State.Steps["extra"] = state.StepState{Name: "extra", Status: state.StatusFailed}
	sc, err := Evaluate(result, nil, DefaultWeights, nil, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sc.Grade != "F" {
		t.Fatalf("expected grade F when a step failed, got %s (%v)", sc.Grade, sc.GateFailures)
	}
}

type stubJudge struct {
	verdicts map[string]JudgeVerdict
}

func (s stubJudge) Score(_, _ string, criteria []string) (map[string]JudgeVerdict, error) {
	out := make(map[string]JudgeVerdict, len(criteria))
	for _, c := range criteria {
		out[c] = s.verdicts[c]
	}
	return out, nil
}

func TestValidateWeightsRejectsBadSum(t *testing.T) {
	if err := ValidateWeights(map[string]float64{"a": 0.5, "b": 0.6}, nil); err == nil {
		t.Fatalf("expected error for weights summing to 1.1")
	}
	if err := ValidateWeights(map[string]float64{"a": 0.5, "b": 0.5}, []string{"a", "b"}); err != nil {
		t.Fatalf("expected valid weights to pass: %v", err)
	}
}

func TestJudgeLayerFlagsNothingWhenConsistent(t *testing.T) {
	result := successfulResult()
	judge := stubJudge{verdicts: map[string]JudgeVerdict{
		"correctness": {Score: 4, Evidence: "matches"}, "code_quality": {Score: 4},
		"efficiency": {Score: 4}, "documentation": {Score: 4},
	}}
	sample := &Sample{Inputs: map[string]any{}, ExpectedOutput: "the quick brown fox jumps over the lazy dog"}
	sc, err := Evaluate(result, sample, DefaultWeights, judge, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	found := false
	for _, c := range sc.Criteria {
		if c.Source == "judge" && c.Name == "correctness" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected judge criteria in scorecard, got %+v", sc.Criteria)
	}
	if len(sc.PairwiseInconsistencies) != 0 {
		t.Fatalf("expected no pairwise inconsistencies for identical verdicts, got %v", sc.PairwiseInconsistencies)
	}
}
