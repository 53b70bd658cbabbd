package expr

import "fmt"

// parser is a small recursive-descent parser over the restricted boolean
// grammar from spec §4.1: literals, identifiers (placeholder references
// produced by Compile), comparisons, logical connectives, arithmetic, and
// container literals. There is no function-call production except the
// hand-coded `coalesce` form, no attribute/subscript access into
// arbitrary values, no assignment — those constructs simply have no
// grammar rule, so they can't parse, which is the enforcement mechanism
// for "disallowed construct → fails closed" from spec §8.
type parser struct {
	toks []token
	pos  int
}

func parseExpr(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("expr: unexpected trailing token %q", p.cur().text)
	}
	return n, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance()    { p.pos++ }
func (p *parser) isIdent(kw string) bool {
	return p.cur().kind == tokIdent && p.cur().text == kw
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isIdent("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isIdent("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.isIdent("not") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "not", operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonPunct = map[string]string{
	"==": "==", "!=": "!=", "<": "<", "<=": "<=", ">": ">", ">=": ">=",
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokPunct {
		if op, ok := comparisonPunct[p.cur().text]; ok {
			p.advance()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return binaryNode{op: op, left: left, right: right}, nil
		}
	}
	if p.isIdent("in") {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: "in", left: left, right: right}, nil
	}
	if p.isIdent("not") && p.peekIdent(1) == "in" {
		p.advance()
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: "not in", left: left, right: right}, nil
	}
	if p.isIdent("is") {
		p.advance()
		op := "is"
		if p.isIdent("not") {
			p.advance()
			op = "is not"
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) peekIdent(offset int) string {
	idx := p.pos + offset
	if idx >= len(p.toks) {
		return ""
	}
	return p.toks[idx].text
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && (p.cur().text == "+" || p.cur().text == "-") {
		op := p.cur().text
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokPunct && (p.cur().text == "*" || p.cur().text == "/" || p.cur().text == "%") {
		op := p.cur().text
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.cur().kind == tokPunct && (p.cur().text == "-" || p.cur().text == "+") {
		op := p.cur().text
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: op, operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.cur()
	switch {
	case t.kind == tokNumber:
		p.advance()
		return literalNode{value: t.num}, nil
	case t.kind == tokString:
		p.advance()
		return literalNode{value: t.text}, nil
	case t.kind == tokIdent && (t.text == "true" || t.text == "false"):
		p.advance()
		return literalNode{value: t.text == "true"}, nil
	case t.kind == tokIdent && (t.text == "null" || t.text == "none" || t.text == "None"):
		p.advance()
		return literalNode{value: nil}, nil
	case t.kind == tokIdent && t.text == "coalesce":
		return p.parseCoalesce()
	case t.kind == tokIdent:
		path := []string{t.text}
		p.advance()
		for p.cur().kind == tokPunct && p.cur().text == "." {
			p.advance()
			if p.cur().kind != tokIdent {
				return nil, fmt.Errorf("expr: expected identifier after '.'")
			}
			path = append(path, p.cur().text)
			p.advance()
		}
		return pathNode{path: path}, nil
	case t.kind == tokPunct && t.text == "(":
		return p.parseParenOrTuple()
	case t.kind == tokPunct && (t.text == "[" || t.text == "{"):
		return p.parseBracketList(t.text)
	default:
		return nil, fmt.Errorf("expr: unexpected token %q", t.text)
	}
}

func (p *parser) parseCoalesce() (node, error) {
	p.advance() // consume "coalesce"
	if !(p.cur().kind == tokPunct && p.cur().text == "(") {
		return nil, fmt.Errorf("expr: expected '(' after coalesce")
	}
	p.advance()
	var args []node
	if !(p.cur().kind == tokPunct && p.cur().text == ")") {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().kind == tokPunct && p.cur().text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if !(p.cur().kind == tokPunct && p.cur().text == ")") {
		return nil, fmt.Errorf("expr: expected ')' to close coalesce")
	}
	p.advance()
	return coalesceNode{args: args}, nil
}

func (p *parser) parseParenOrTuple() (node, error) {
	p.advance() // consume "("
	var items []node
	if !(p.cur().kind == tokPunct && p.cur().text == ")") {
		for {
			item, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.cur().kind == tokPunct && p.cur().text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if !(p.cur().kind == tokPunct && p.cur().text == ")") {
		return nil, fmt.Errorf("expr: expected ')'")
	}
	p.advance()
	if len(items) == 1 {
		return items[0], nil
	}
	return listNode{items: items}, nil
}

func (p *parser) parseBracketList(open string) (node, error) {
	close := "]"
	if open == "{" {
		close = "}"
	}
	p.advance()
	var items []node
	if !(p.cur().kind == tokPunct && p.cur().text == close) {
		for {
			item, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.cur().kind == tokPunct && p.cur().text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if !(p.cur().kind == tokPunct && p.cur().text == close) {
		return nil, fmt.Errorf("expr: expected %q", close)
	}
	p.advance()
	return listNode{items: items}, nil
}
