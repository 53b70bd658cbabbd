package expr

import "fmt"

// eval walks the AST against a view. refs resolves the synthetic
// placeholder identifiers Compile substitutes for each `${...}`
// occurrence back to the path they stood in for; an identifier not found
// in refs is looked up directly against the view instead, which is how a
// bare dotted path like `steps.a.status` resolves inside an expression
// that also holds at least one `${...}` reference (a source string with
// no `${...}` at all is never parsed; Compile keeps it as a literal).
func eval(n node, v View, refs map[string]pathNode) any {
	switch t := n.(type) {
	case literalNode:
		return t.value
	case pathNode:
		if len(t.path) == 1 {
			if ref, ok := refs[t.path[0]]; ok {
				return v.resolvePath(ref.path)
			}
		}
		return v.resolvePath(t.path)
	case coalesceNode:
		for _, arg := range t.args {
			val := eval(arg, v, refs)
			if !isNullish(val) {
				return val
			}
		}
		return nil
	case unaryNode:
		operand := eval(t.operand, v, refs)
		switch t.op {
		case "not":
			return !truthy(operand)
		case "-":
			n, ok := asNumber(operand)
			if !ok {
				return nil
			}
			return -n
		case "+":
			n, ok := asNumber(operand)
			if !ok {
				return nil
			}
			return n
		}
		return nil
	case binaryNode:
		return evalBinary(t, v, refs)
	case listNode:
		items := make([]any, len(t.items))
		for i, item := range t.items {
			items[i] = eval(item, v, refs)
		}
		return items
	default:
		return nil
	}
}

func evalBinary(t binaryNode, v View, refs map[string]pathNode) any {
	switch t.op {
	case "and":
		left := eval(t.left, v, refs)
		if !truthy(left) {
			return false
		}
		return truthy(eval(t.right, v, refs))
	case "or":
		left := eval(t.left, v, refs)
		if truthy(left) {
			return true
		}
		return truthy(eval(t.right, v, refs))
	}

	left := eval(t.left, v, refs)
	right := eval(t.right, v, refs)

	switch t.op {
	case "==":
		return equalValues(left, right)
	case "!=":
		return !equalValues(left, right)
	case "is":
		return equalValues(left, right)
	case "is not":
		return !equalValues(left, right)
	case "in":
		return contains(right, left)
	case "not in":
		return !contains(right, left)
	case "<", "<=", ">", ">=":
		ln, lok := asNumber(left)
		rn, rok := asNumber(right)
		if !lok || !rok {
			return false
		}
		switch t.op {
		case "<":
			return ln < rn
		case "<=":
			return ln <= rn
		case ">":
			return ln > rn
		case ">=":
			return ln >= rn
		}
	case "+", "-", "*", "/", "%":
		ln, lok := asNumber(left)
		rn, rok := asNumber(right)
		if !lok || !rok {
			// String concatenation is the one non-numeric "+" the grammar
			// allows; anything else is a disallowed construct and yields nil.
			if t.op == "+" {
				ls, lok := left.(string)
				rs, rok := right.(string)
				if lok && rok {
					return ls + rs
				}
			}
			return nil
		}
		switch t.op {
		case "+":
			return ln + rn
		case "-":
			return ln - rn
		case "*":
			return ln * rn
		case "/":
			if rn == 0 {
				return nil
			}
			return ln / rn
		case "%":
			if rn == 0 {
				return nil
			}
			return float64(int64(ln) % int64(rn))
		}
	}
	return nil
}

func isNullish(v any) bool {
	return v == nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func equalValues(a, b any) bool {
	an, aok := asNumber(a)
	bn, bok := asNumber(b)
	if aok && bok {
		return an == bn
	}
	return fmt.Sprint(a) == fmt.Sprint(b) && sameKind(a, b)
}

func sameKind(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b)
}

func contains(container, item any) bool {
	switch c := container.(type) {
	case []any:
		for _, elem := range c {
			if equalValues(elem, item) {
				return true
			}
		}
		return false
	case map[string]any:
		key, ok := item.(string)
		if !ok {
			return false
		}
		_, found := c[key]
		return found
	case string:
		s, ok := item.(string)
		return ok && containsSubstring(c, s)
	default:
		return false
	}
}

func containsSubstring(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
