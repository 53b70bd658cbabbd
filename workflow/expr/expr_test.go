package expr

import (
	"testing"

	"github.com/dshills/flowgraph/workflow/state"
)

func testView() View {
	run := state.New()
	run.Inputs["mode"] = "A"
	run.Context["threshold"] = 0.8
	run.Steps["draft"] = state.StepState{
		Name:    "draft",
		Status:  state.StatusSuccess,
		Outputs: map[string]any{"score": 0.9, "tags": []any{"ok", "reviewed"}},
	}
	return NewView(run)
}

func TestResolveWholeReference(t *testing.T) {
	e, err := Compile("${steps.draft.outputs.score}")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got := e.Resolve(testView())
	if got != 0.9 {
		t.Fatalf("expected 0.9, got %v", got)
	}
}

func TestResolveMissingAttributeYieldsNil(t *testing.T) {
	e, err := Compile("${steps.draft.outputs.missing.deeper}")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := e.Resolve(testView()); got != nil {
		t.Fatalf("expected nil for missing attribute, got %v", got)
	}
}

func TestBoolGateComparison(t *testing.T) {
	e, err := Compile("${steps.draft.outputs.score} >= 0.8")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !e.Bool(testView()) {
		t.Fatalf("expected gate to pass")
	}
}

func TestBoolGateMissingAttributeIsFalse(t *testing.T) {
	e, err := Compile("${steps.nope.outputs.score} >= 0.8")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if e.Bool(testView()) {
		t.Fatalf("expected gate referencing a missing step to be false")
	}
}

func TestBoolGateAndOr(t *testing.T) {
	e, err := Compile("${inputs.mode} == 'A' and ${steps.draft.outputs.score} > 0.5")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !e.Bool(testView()) {
		t.Fatalf("expected and-combined gate to pass")
	}

	e2, err := Compile("${inputs.mode} == 'B' or ${steps.draft.status} == 'success'")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !e2.Bool(testView()) {
		t.Fatalf("expected or-combined gate to pass")
	}
}

func TestBoolGateNotAndIn(t *testing.T) {
	e, err := Compile("not (${inputs.mode} in ['B', 'C'])")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !e.Bool(testView()) {
		t.Fatalf("expected not-in gate to pass for mode A")
	}
}

func TestCoalesceFallsBackToDefault(t *testing.T) {
	e, err := Compile("coalesce(${steps.draft.outputs.missing}, ${inputs.mode})")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got := e.Resolve(testView())
	if got != "A" {
		t.Fatalf("expected coalesce to fall through to inputs.mode, got %v", got)
	}
}

func TestIsAndIsNot(t *testing.T) {
	e, err := Compile("${steps.draft.outputs.missing} is null")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !e.Bool(testView()) {
		t.Fatalf("expected 'is null' on a missing path to be true")
	}

	e2, err := Compile("${steps.draft.status} is not null")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !e2.Bool(testView()) {
		t.Fatalf("expected 'is not null' on a present field to be true")
	}
}

func TestDisallowedConstructFailsClosedAtCompile(t *testing.T) {
	_, err := Compile("${inputs.mode}.upper()")
	if err == nil {
		t.Fatalf("expected an error compiling a method-call construct")
	}
}

func TestPlainLiteralWithoutReferences(t *testing.T) {
	e, err := Compile("a plain string")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if e.HasReferences() {
		t.Fatalf("expected no references")
	}
	if got := e.Resolve(testView()); got != "a plain string" {
		t.Fatalf("expected literal passthrough, got %v", got)
	}
	if !e.Bool(testView()) {
		t.Fatalf("expected Bool on a non-empty literal to be truthy")
	}
}
