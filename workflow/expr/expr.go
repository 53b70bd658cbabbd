package expr

import (
	"fmt"
	"regexp"
	"strings"
)

var refPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Expression is a compiled `${...}`/boolean-grammar expression, ready to
// be resolved against any number of Views. Compiling once and resolving
// many times is the whole point: a workflow's gates and input mappings
// are compiled at graph-build time, then evaluated on every step tick.
type Expression struct {
	raw string
	// wholeRef holds the single dotted path when the entire source string
	// is exactly one `${...}` reference — the data-resolution case, which
	// can yield any value (string, number, map, list), not just a bool.
	wholeRef *pathNode
	ast      node
	refs     map[string]pathNode
}

// Compile parses raw into an Expression. raw may be a literal value with
// no `${}` markers at all (Resolve then returns raw unchanged and Bool
// reports whether raw is non-empty), a single bare `${...}` reference, or a boolean
// expression with one or more `${...}` references spliced in.
func Compile(raw string) (*Expression, error) {
	matches := refPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return &Expression{raw: raw}, nil
	}

	trimmed := strings.TrimSpace(raw)
	if len(matches) == 1 && trimmed == raw[matches[0][0]:matches[0][1]] {
		inner := strings.TrimSpace(raw[matches[0][2]:matches[0][3]])
		pn := pathNode{path: strings.Split(inner, ".")}
		return &Expression{raw: raw, wholeRef: &pn}, nil
	}

	var sb strings.Builder
	refs := make(map[string]pathNode, len(matches))
	last := 0
	for i, m := range matches {
		sb.WriteString(raw[last:m[0]])
		name := fmt.Sprintf("__ref%d__", i)
		inner := strings.TrimSpace(raw[m[2]:m[3]])
		refs[name] = pathNode{path: strings.Split(inner, ".")}
		sb.WriteString(name)
		last = m[1]
	}
	sb.WriteString(raw[last:])

	ast, err := parseExpr(sb.String())
	if err != nil {
		return nil, fmt.Errorf("expr: compiling %q: %w", raw, err)
	}
	return &Expression{raw: raw, ast: ast, refs: refs}, nil
}

// Resolve evaluates the expression against v. For a plain-literal or
// single-whole-reference expression this returns the raw value (a
// string, number, map, or nil for a missing path); for a spliced boolean
// expression it returns the computed bool.
func (e *Expression) Resolve(v View) any {
	if e.wholeRef != nil {
		return v.resolvePath(e.wholeRef.path)
	}
	if e.ast == nil {
		return e.raw
	}
	return eval(e.ast, v, e.refs)
}

// Bool evaluates the expression as a gate condition. A missing attribute
// anywhere in the path evaluates to false rather than panicking or
// propagating an error. A disallowed construct never reaches Bool:
// Compile rejects it with an error.
func (e *Expression) Bool(v View) bool {
	return truthy(e.Resolve(v))
}

// Raw returns the original, uncompiled source string.
func (e *Expression) Raw() string { return e.raw }

// HasReferences reports whether the expression contains any `${...}`
// markers at all; a pure literal string never needs a View to resolve.
func (e *Expression) HasReferences() bool {
	return e.wholeRef != nil || e.ast != nil
}
