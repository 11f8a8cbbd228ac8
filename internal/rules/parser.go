package rules

import (
	"fmt"
	"strconv"
)

// rawName is the only identifier a trigger may reference.
const rawName = "raw"

const maxDepth = 64

// SyntaxError reports a trigger that could not be parsed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

// Parse turns a trigger expression into its AST.
func Parse(src string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", t)
	}
	return n, nil
}

type parser struct {
	toks  []token
	pos   int
	depth int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == word
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", what, t)
	}
	return t, nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf(p.peek(), "expression nested too deeply")
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseOr() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.isKeyword("not") {
		p.next()
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not{Operand: operand}, nil
	}
	return p.parseComparison()
}

// parseComparison handles chains such as `1 <= raw["year"] < 4`, which
// expand to a conjunction of pairwise comparisons.
func (p *parser) parseComparison() (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	var result Node
	for {
		build, ok := p.comparisonOp()
		if !ok {
			break
		}
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		cmp := build(left, right)
		if result == nil {
			result = cmp
		} else {
			result = And{Left: result, Right: cmp}
		}
		left = right
	}
	if result == nil {
		return left, nil
	}
	return result, nil
}

func (p *parser) comparisonOp() (func(l, r Node) Node, bool) {
	t := p.peek()
	switch {
	case t.kind == tokOp && t.text != "-":
		p.next()
		op := CompareOp(t.text)
		return func(l, r Node) Node { return Compare{Op: op, Left: l, Right: r} }, true
	case p.isKeyword("in"):
		p.next()
		return func(l, r Node) Node { return In{Item: l, Container: r} }, true
	case p.isKeyword("not") && p.toks[p.pos+1].kind == tokIdent && p.toks[p.pos+1].text == "in":
		p.pos += 2
		return func(l, r Node) Node { return In{Item: l, Container: r, Negated: true} }, true
	}
	return nil, false
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return Literal{Value: t.text}, nil
	case tokInt:
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return Literal{Value: n}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number %s", t)
		}
		return Literal{Value: f}, nil
	case tokFloat:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number %s", t)
		}
		return Literal{Value: f}, nil
	case tokLParen:
		return p.parseParen()
	case tokLBracket:
		items, err := p.parseItems(tokRBracket, "]")
		if err != nil {
			return nil, err
		}
		return List{Items: items}, nil
	case tokIdent:
		return p.parseName(t)
	case tokOp:
		if t.text == "-" {
			return p.parseNegative(t)
		}
	}
	return nil, p.errorf(t, "unexpected %s", t)
}

// parseNegative accepts a minus sign only in front of a number literal.
func (p *parser) parseNegative(minus token) (Node, error) {
	t := p.peek()
	if t.kind != tokInt && t.kind != tokFloat {
		return nil, p.errorf(minus, "unary minus applies only to numbers")
	}
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	switch v := n.(Literal).Value.(type) {
	case int64:
		return Literal{Value: -v}, nil
	case float64:
		return Literal{Value: -v}, nil
	}
	return nil, p.errorf(minus, "unary minus applies only to numbers")
}

func (p *parser) parseParen() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if p.peek().kind == tokRParen {
		p.next()
		return List{}, nil
	}
	first, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokRParen {
		p.next()
		return first, nil
	}
	if _, err := p.expect(tokComma, `"," or ")"`); err != nil {
		return nil, err
	}
	rest, err := p.parseItems(tokRParen, ")")
	if err != nil {
		return nil, err
	}
	return List{Items: append([]Node{first}, rest...)}, nil
}

// parseItems reads a comma separated sequence up to the closing token,
// allowing a trailing comma.
func (p *parser) parseItems(end tokenKind, endText string) ([]Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	var items []Node
	for p.peek().kind != end {
		item, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(end, strconv.Quote(endText)); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *parser) parseName(t token) (Node, error) {
	switch t.text {
	case "True", "true":
		return Literal{Value: true}, nil
	case "False", "false":
		return Literal{Value: false}, nil
	case "None", "null":
		return Literal{Value: nil}, nil
	case rawName:
		return p.parseRawAccess()
	}
	return nil, p.errorf(t, "unknown name %s", t)
}

func (p *parser) parseRawAccess() (Node, error) {
	var ref Node = RawRef{}
	switch p.peek().kind {
	case tokLBracket:
		p.next()
		key, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBracket, `"]"`); err != nil {
			return nil, err
		}
		ref = FieldRef{Key: key, Strict: true}
	case tokDot:
		p.next()
		name, err := p.expect(tokIdent, "field name")
		if err != nil {
			return nil, err
		}
		if name.text == "get" && p.peek().kind == tokLParen {
			p.next()
			args, err := p.parseItems(tokRParen, ")")
			if err != nil {
				return nil, err
			}
			if len(args) < 1 || len(args) > 2 {
				return nil, p.errorf(name, "get takes 1 or 2 arguments, got %d", len(args))
			}
			fr := FieldRef{Key: args[0]}
			if len(args) == 2 {
				fr.Default = args[1]
			}
			ref = fr
		} else {
			ref = FieldRef{Key: Literal{Value: name.text}, Strict: true}
		}
	}

	switch t := p.peek(); t.kind {
	case tokLBracket, tokDot, tokLParen:
		return nil, p.errorf(t, "unsupported access %s", t)
	}
	return ref, nil
}
