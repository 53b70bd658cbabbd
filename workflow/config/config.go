// Package config loads and validates the YAML workflow definition described
// in spec section 6: inputs, steps, declared outputs, and evaluation rubric.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InputSpec describes one declared workflow input.
type InputSpec struct {
	Name        string `yaml:"-"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Default     any    `yaml:"default"`
	Required    bool   `yaml:"required"`
	Enum        []any  `yaml:"enum"`
}

// rawInput supports both the full mapping form and the bare-scalar-default
// shorthand the YAML grammar allows for an input entry.
type rawInput struct {
	set   bool
	spec  InputSpec
	plain any
}

func (r *rawInput) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		var spec InputSpec
		if err := node.Decode(&spec); err != nil {
			return err
		}
		r.spec = spec
		r.set = true
		return nil
	}
	var plain any
	if err := node.Decode(&plain); err != nil {
		return err
	}
	r.plain = plain
	r.spec = InputSpec{Default: plain}
	r.set = true
	return nil
}

// OutputSpec describes one declared workflow output, resolved from the
// `${...}`/expression sublanguage against final run state.
type OutputSpec struct {
	Name     string `yaml:"-"`
	From     string `yaml:"from"`
	Optional bool   `yaml:"optional"`
}

type rawOutput struct {
	spec OutputSpec
}

func (r *rawOutput) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		var spec OutputSpec
		if err := node.Decode(&spec); err != nil {
			return err
		}
		r.spec = spec
		return nil
	}
	var from string
	if err := node.Decode(&from); err != nil {
		return err
	}
	r.spec = OutputSpec{From: from}
	return nil
}

// Step describes a single node in the workflow graph.
type Step struct {
	Name          string            `yaml:"name"`
	Agent         string            `yaml:"agent"`
	Description   string            `yaml:"description"`
	DependsOn     []string          `yaml:"depends_on"`
	Inputs        map[string]string `yaml:"inputs"`
	Outputs       map[string]string `yaml:"outputs"`
	When          string            `yaml:"when"`
	LoopUntil     string            `yaml:"loop_until"`
	LoopMax       int               `yaml:"loop_max"`
	Tools         []string          `yaml:"tools"`
	PromptFile    string            `yaml:"prompt_file"`
	ModelOverride string            `yaml:"model_override"`
	TimeoutMS     int               `yaml:"timeout_ms"`
}

// EvaluationCriterion is one rubric entry in the optional evaluation block.
type EvaluationCriterion struct {
	Name             string  `yaml:"name"`
	Definition       string  `yaml:"definition"`
	Weight           float64 `yaml:"weight"`
	CriticalFloor    float64 `yaml:"critical_floor"`
	Scale            string  `yaml:"scale"`
	EvidenceRequired bool    `yaml:"evidence_required"`
	FormulaID        string  `yaml:"formula_id"`
}

// Evaluation is the optional scorecard configuration of spec section 4.10.
type Evaluation struct {
	RubricID       string               `yaml:"rubric_id"`
	ScoringProfile string               `yaml:"scoring_profile"`
	Weights        map[string]float64   `yaml:"weights"`
	Criteria       []EvaluationCriterion `yaml:"criteria"`
}

// Capabilities is the declared-surface block some hosting tools use to
// discover a workflow's inputs/outputs without parsing steps.
type Capabilities struct {
	Inputs  []string `yaml:"inputs"`
	Outputs []string `yaml:"outputs"`
}

// Workflow is the fully parsed representation of a workflow YAML document.
type Workflow struct {
	Name           string `yaml:"name"`
	Version        string `yaml:"version"`
	Description    string `yaml:"description"`
	Experimental   bool   `yaml:"experimental"`
	Inputs         map[string]InputSpec
	Outputs        map[string]OutputSpec
	Steps          []Step       `yaml:"steps"`
	Evaluation     *Evaluation  `yaml:"evaluation"`
	Capabilities   Capabilities `yaml:"capabilities"`
}

// rawWorkflow mirrors Workflow but with map value types that support the
// mapping-or-scalar shorthand before names are folded back in.
type rawWorkflow struct {
	Name         string                `yaml:"name"`
	Version      string                `yaml:"version"`
	Description  string                `yaml:"description"`
	Experimental bool                  `yaml:"experimental"`
	Inputs       map[string]rawInput   `yaml:"inputs"`
	Outputs      map[string]rawOutput  `yaml:"outputs"`
	Steps        []Step                `yaml:"steps"`
	Evaluation   *Evaluation           `yaml:"evaluation"`
	Capabilities Capabilities          `yaml:"capabilities"`
}

// Load reads and parses a workflow YAML document from path.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a workflow YAML document from raw bytes.
func Parse(data []byte) (*Workflow, error) {
	var raw rawWorkflow
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}

	wf := &Workflow{
		Name:         raw.Name,
		Version:      raw.Version,
		Description:  raw.Description,
		Experimental: raw.Experimental,
		Inputs:       make(map[string]InputSpec, len(raw.Inputs)),
		Outputs:      make(map[string]OutputSpec, len(raw.Outputs)),
		Steps:        raw.Steps,
		Evaluation:   raw.Evaluation,
		Capabilities: raw.Capabilities,
	}
	for name, in := range raw.Inputs {
		spec := in.spec
		spec.Name = name
		wf.Inputs[name] = spec
	}
	for name, out := range raw.Outputs {
		spec := out.spec
		spec.Name = name
		wf.Outputs[name] = spec
	}
	if err := Validate(wf); err != nil {
		return nil, err
	}
	return wf, nil
}
