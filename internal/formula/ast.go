package formula

import (
	"strconv"
	"strings"
)

// Input names one of the two per-row values a formula can read.
type Input int

const (
	// InputActual is the row's current price (price.actual, or bare price).
	InputActual Input = iota
	// InputCompra is the row's purchase price (price.compra).
	InputCompra
)

func (in Input) String() string {
	if in == InputCompra {
		return "price.compra"
	}
	return "price.actual"
}

var identifiers = map[string]Input{
	"price":        InputActual,
	"price.actual": InputActual,
	"price.compra": InputCompra,
}

// Node is an expression tree node.
type Node interface {
	String() string
}

type (
	numberLit struct{ v float64 }
	boolLit   struct{ v bool }
	inputRef  struct{ in Input }
	unaryExpr struct {
		op string
		x  Node
	}
	binaryExpr struct {
		op   string
		l, r Node
	}
	ifExpr struct {
		cond, then, els Node
	}
)

func (n numberLit) String() string { return strconv.FormatFloat(n.v, 'f', -1, 64) }

func (n boolLit) String() string {
	if n.v {
		return "TRUE"
	}
	return "FALSE"
}

func (n inputRef) String() string   { return n.in.String() }
func (n unaryExpr) String() string  { return "(" + n.op + n.x.String() + ")" }
func (n binaryExpr) String() string { return "(" + n.l.String() + " " + n.op + " " + n.r.String() + ")" }

func (n ifExpr) String() string {
	var b strings.Builder
	b.WriteString("IF(")
	b.WriteString(n.cond.String())
	b.WriteString(", ")
	b.WriteString(n.then.String())
	b.WriteString(", ")
	b.WriteString(n.els.String())
	b.WriteString(")")
	return b.String()
}
