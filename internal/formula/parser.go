package formula

import (
	"fmt"
	"strconv"
)

// Grammar, lowest precedence first:
//
//	expr    = or
//	or      = and { "OR" and }
//	and     = cmp { "AND" cmp }
//	cmp     = sum [ ("<" | ">" | "<=" | ">=" | "==" | "!=") sum ]
//	sum     = product { ("+" | "-") product }
//	product = unary { ("*" | "/") unary }
//	unary   = ("-" | "+") unary | primary
//	primary = number | TRUE | FALSE | ident | IF "(" expr "," expr "," expr ")" | "(" expr ")"
type parser struct {
	toks []token
	pos  int
}

func parse(toks []token) (Node, error) {
	p := &parser{toks: toks}
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", t)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return fmt.Errorf("%w at %d: %s", ErrSyntax, t.pos, fmt.Sprintf(format, args...))
}

func (p *parser) expect(kind tokenKind, what string) error {
	if t := p.next(); t.kind != kind {
		return p.errorf(t, "expected %s, found %s", what, t)
	}
	return nil
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokKeyword && t.text == word
}

func (p *parser) isOp(ops ...string) bool {
	t := p.peek()
	if t.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if t.text == op {
			return true
		}
	}
	return false
}

func (p *parser) or() (Node, error) {
	l, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.next()
		r, err := p.and()
		if err != nil {
			return nil, err
		}
		l = binaryExpr{op: "OR", l: l, r: r}
	}
	return l, nil
}

func (p *parser) and() (Node, error) {
	l, err := p.cmp()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.next()
		r, err := p.cmp()
		if err != nil {
			return nil, err
		}
		l = binaryExpr{op: "AND", l: l, r: r}
	}
	return l, nil
}

func (p *parser) cmp() (Node, error) {
	l, err := p.sum()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp && comparisonOps[t.text] {
		p.next()
		r, err := p.sum()
		if err != nil {
			return nil, err
		}
		l = binaryExpr{op: t.text, l: l, r: r}
		if t2 := p.peek(); t2.kind == tokOp && comparisonOps[t2.text] {
			return nil, p.errorf(t2, "chained comparison")
		}
	}
	return l, nil
}

func (p *parser) sum() (Node, error) {
	l, err := p.product()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		op := p.next().text
		r, err := p.product()
		if err != nil {
			return nil, err
		}
		l = binaryExpr{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) product() (Node, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/") {
		op := p.next().text
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = binaryExpr{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) unary() (Node, error) {
	if p.isOp("-", "+") {
		op := p.next().text
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			return x, nil
		}
		return unaryExpr{op: op, x: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "bad number %s", t)
		}
		return numberLit{v: v}, nil

	case tokIdent:
		in, ok := identifiers[t.text]
		if !ok {
			return nil, p.errorf(t, "unknown identifier %s", t)
		}
		return inputRef{in: in}, nil

	case tokKeyword:
		switch t.text {
		case "TRUE":
			return boolLit{v: true}, nil
		case "FALSE":
			return boolLit{v: false}, nil
		case "IF":
			return p.ifCall()
		}
		return nil, p.errorf(t, "unexpected %s", t)

	case tokLParen:
		n, err := p.or()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, `")"`); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, p.errorf(t, "unexpected %s", t)
}

func (p *parser) ifCall() (Node, error) {
	if err := p.expect(tokLParen, `"(" after IF`); err != nil {
		return nil, err
	}
	args := make([]Node, 0, 3)
	for i := 0; i < 3; i++ {
		if i > 0 {
			if err := p.expect(tokComma, `","`); err != nil {
				return nil, err
			}
		}
		n, err := p.or()
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	if err := p.expect(tokRParen, `")" closing IF`); err != nil {
		return nil, err
	}
	return ifExpr{cond: args[0], then: args[1], els: args[2]}, nil
}
