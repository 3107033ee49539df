// Package formula compiles and evaluates the price formulas users apply to
// selected rows, such as "IF(price.actual > price.compra, price.actual, price.compra)".
package formula

import (
	"fmt"
	"math"
	"strings"
)

// Inputs are the per-row values bound to the formula identifiers.
type Inputs struct {
	Actual float64
	Compra float64
}

func (in Inputs) get(i Input) float64 {
	if i == InputCompra {
		return in.Compra
	}
	return in.Actual
}

// Program is a compiled formula. It is immutable and safe for concurrent use.
type Program struct {
	src  string
	root Node
	uses [2]bool
}

// Compile parses src. A leading "=" is accepted and ignored.
func Compile(src string) (*Program, error) {
	text := strings.TrimSpace(src)
	text = strings.TrimSpace(strings.TrimPrefix(text, "="))
	if text == "" {
		return nil, ErrEmpty
	}

	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	if err := checkLogical(toks); err != nil {
		return nil, err
	}

	root, err := parse(toks)
	if err != nil {
		return nil, err
	}
	p := &Program{src: src, root: root}
	collectInputs(root, &p.uses)
	return p, nil
}

func collectInputs(n Node, uses *[2]bool) {
	switch n := n.(type) {
	case inputRef:
		uses[n.in] = true
	case unaryExpr:
		collectInputs(n.x, uses)
	case binaryExpr:
		collectInputs(n.l, uses)
		collectInputs(n.r, uses)
	case ifExpr:
		collectInputs(n.cond, uses)
		collectInputs(n.then, uses)
		collectInputs(n.els, uses)
	}
}

// Uses reports whether the formula reads in anywhere, including IF
// branches that may not be taken for a given row.
func (p *Program) Uses(in Input) bool { return p.uses[in] }

// checkLogical rejects AND/OR in a formula that has no comparison anywhere.
func checkLogical(toks []token) error {
	logical, comparison := false, false
	for _, t := range toks {
		switch {
		case t.kind == tokKeyword && (t.text == "AND" || t.text == "OR"):
			logical = true
		case t.kind == tokOp && comparisonOps[t.text]:
			comparison = true
		}
	}
	if logical && !comparison {
		return ErrLogicalWithoutComparison
	}
	return nil
}

// Source returns the formula text as given to Compile.
func (p *Program) Source() string { return p.src }

// String returns the parsed expression fully parenthesized.
func (p *Program) String() string { return p.root.String() }

// Eval evaluates the program for one row. The result is rounded to two
// decimal places.
func (p *Program) Eval(in Inputs) (float64, error) {
	v := eval(p.root, in)
	if v.isBool {
		return 0, ErrNotNumeric
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return 0, ErrNonFinite
	}
	return Round2(v.num), nil
}

// Evaluate compiles and evaluates src in one step.
func Evaluate(src string, in Inputs) (float64, error) {
	p, err := Compile(src)
	if err != nil {
		return 0, err
	}
	return p.Eval(in)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(f float64) float64 {
	r := math.Round(f*100) / 100
	if r == 0 {
		return 0
	}
	return r
}

type value struct {
	num    float64
	b      bool
	isBool bool
}

func number(f float64) value { return value{num: f} }
func boolean(b bool) value   { return value{b: b, isBool: true} }

// truthy treats non-zero numbers as true.
func (v value) truthy() bool {
	if v.isBool {
		return v.b
	}
	return v.num != 0 && !math.IsNaN(v.num)
}

// float treats booleans as 1 and 0.
func (v value) float() float64 {
	if v.isBool {
		if v.b {
			return 1
		}
		return 0
	}
	return v.num
}

func eval(n Node, in Inputs) value {
	switch n := n.(type) {
	case numberLit:
		return number(n.v)
	case boolLit:
		return boolean(n.v)
	case inputRef:
		return number(in.get(n.in))
	case unaryExpr:
		return number(-eval(n.x, in).float())
	case ifExpr:
		if eval(n.cond, in).truthy() {
			return eval(n.then, in)
		}
		return eval(n.els, in)
	case binaryExpr:
		return evalBinary(n, in)
	}
	panic(fmt.Sprintf("formula: unknown node %T", n))
}

func evalBinary(n binaryExpr, in Inputs) value {
	switch n.op {
	case "AND":
		return boolean(eval(n.l, in).truthy() && eval(n.r, in).truthy())
	case "OR":
		return boolean(eval(n.l, in).truthy() || eval(n.r, in).truthy())
	}

	l, r := eval(n.l, in).float(), eval(n.r, in).float()
	switch n.op {
	case "+":
		return number(l + r)
	case "-":
		return number(l - r)
	case "*":
		return number(l * r)
	case "/":
		return number(l / r)
	case "<":
		return boolean(l < r)
	case ">":
		return boolean(l > r)
	case "<=":
		return boolean(l <= r)
	case ">=":
		return boolean(l >= r)
	case "==":
		return boolean(l == r)
	case "!=":
		return boolean(l != r)
	}
	panic("formula: unknown operator " + n.op)
}
