package tool

import (
	"fmt"
	"sort"

	"github.com/dshills/flowgraph/workflow/model"
)

// Registry holds every tool a workflow run may expose to a step,
// indexed by name, and exposes tier-filtered subsets plus a schema
// export shaped for tool-calling (model.ToolSpec).
type Registry struct {
	entries map[string]entry
}

type entry struct {
	tool Tool
	spec Spec
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register adds a tool under t.Name(), overwriting any prior
// registration of the same name. spec.Name is replaced by t.Name().
func (r *Registry) Register(t Tool, spec Spec) {
	spec.Name = t.Name()
	r.entries[spec.Name] = entry{tool: t, spec: spec}
}

// Lookup returns the tool registered under name, if any.
func (r *Registry) Lookup(name string) (Tool, bool) {
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// ForTier returns, in a stable name-sorted order, every tool whose
// MinTier is at or below tier — the superset a step running at that
// tier is allowed to call.
func (r *Registry) ForTier(tier int) []Tool {
	names := r.sortedNames()
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		e := r.entries[name]
		if e.spec.MinTier <= tier {
			out = append(out, e.tool)
		}
	}
	return out
}

// SchemasForTier exports the model.ToolSpec list (JSON-schema shaped)
// for every tool available at tier, suitable for binding to a chat
// model's tool-calling parameter.
func (r *Registry) SchemasForTier(tier int) []model.ToolSpec {
	names := r.sortedNames()
	out := make([]model.ToolSpec, 0, len(names))
	for _, name := range names {
		e := r.entries[name]
		if e.spec.MinTier <= tier {
			out = append(out, model.ToolSpec{
				Name:        e.spec.Name,
				Description: e.spec.Description,
				Schema:      e.spec.Schema,
			})
		}
	}
	return out
}

// Restrict returns the tools named in names, in the order given. It
// does not filter by MinTier. Unknown names are an error — a typo in a step's explicit tool list
// should not silently degrade to "all tools".
func (r *Registry) Restrict(names []string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		e, ok := r.entries[name]
		if !ok {
			return nil, fmt.Errorf("tool: unknown tool %q", name)
		}
		out = append(out, e.tool)
	}
	return out, nil
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
