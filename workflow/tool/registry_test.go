package tool

import "testing"

func TestForTierIsStrictlyBroaderAtHigherTiers(t *testing.T) {
	r := NewRegistry()
	r.Register(&MockTool{ToolName: "calc"}, Spec{MinTier: 0})
	r.Register(&MockTool{ToolName: "search"}, Spec{MinTier: 2})
	r.Register(&MockTool{ToolName: "browse"}, Spec{MinTier: 4})

	tier0 := r.ForTier(0)
	tier2 := r.ForTier(2)
	tier4 := r.ForTier(4)

	if len(tier0) != 1 || tier0[0].Name() != "calc" {
		t.Fatalf("expected only calc at tier 0, got %v", names(tier0))
	}
	if len(tier2) != 2 {
		t.Fatalf("expected 2 tools at tier 2, got %v", names(tier2))
	}
	if len(tier4) != 3 {
		t.Fatalf("expected all 3 tools at tier 4, got %v", names(tier4))
	}
}

func TestRestrictRejectsUnknownName(t *testing.T) {
	r := NewRegistry()
	r.Register(&MockTool{ToolName: "calc"}, Spec{MinTier: 0})
	if _, err := r.Restrict([]string{"calc", "nope"}); err == nil {
		t.Fatalf("expected an error for an unregistered tool name")
	}
}

func TestSchemasForTierExportsJSONSchemaShape(t *testing.T) {
	r := NewRegistry()
	r.Register(&MockTool{ToolName: "calc"}, Spec{
		Description: "evaluate an arithmetic expression",
		Schema:      map[string]any{"type": "object"},
		MinTier:     1,
	})
	schemas := r.SchemasForTier(1)
	if len(schemas) != 1 || schemas[0].Name != "calc" {
		t.Fatalf("expected calc schema, got %v", schemas)
	}
}

func names(tools []Tool) []string {
	out := make([]string, len(tools))
	for i, t := range tools {
		out[i] = t.Name()
	}
	return out
}
