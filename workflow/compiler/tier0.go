package compiler

import "context"

// DeterministicFunc is a tier-0 step implementation: no model call, no
// failover, just a synchronous-from-the-caller's-perspective transform of
// resolved inputs into outputs.
type DeterministicFunc func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// DeterministicRegistry looks up a tier-0 implementation by the step's
// agent identifier. An absent entry is not an error at lookup time -
// CompileStep turns a miss into a no-op success, per spec 4.4.
type DeterministicRegistry struct {
	entries map[string]DeterministicFunc
}

// NewDeterministicRegistry returns an empty tier-0 registry.
func NewDeterministicRegistry() *DeterministicRegistry {
	return &DeterministicRegistry{entries: make(map[string]DeterministicFunc)}
}

// Register binds agent to fn. Re-registering the same name replaces it.
func (r *DeterministicRegistry) Register(agent string, fn DeterministicFunc) {
	r.entries[agent] = fn
}

// Lookup returns the implementation bound to agent, if any.
func (r *DeterministicRegistry) Lookup(agent string) (DeterministicFunc, bool) {
	fn, ok := r.entries[agent]
	return fn, ok
}
