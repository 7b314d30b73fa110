package expr

import (
	"strconv"
	"strings"
)

// Operator precedence, loosest first.
const (
	precTest = iota
	precCond
	precOr
	precAnd
	precNot
	precCompare
	precArith
	precTerm
	precUnary
	precPower
	precPrimary
)

// Format renders an AST back to source. Parse(Format(n)) yields an AST
// equal to n up to positions and number spelling.
func Format(n Node) string {
	var b strings.Builder
	format(&b, n, precTest)
	return b.String()
}

func precOf(n Node) int {
	switch n := n.(type) {
	case *Cond:
		return precCond
	case *BoolOp:
		if n.Op == "or" {
			return precOr
		}
		return precAnd
	case *Unary:
		if n.Op == "not" {
			return precNot
		}
		return precUnary
	case *Compare:
		return precCompare
	case *Binary:
		switch n.Op {
		case "+", "-":
			return precArith
		case "**":
			return precPower
		}
		return precTerm
	}
	return precPrimary
}

func format(b *strings.Builder, n Node, ctx int) {
	paren := precOf(n) < ctx
	if paren {
		b.WriteByte('(')
	}
	switch n := n.(type) {
	case *Num:
		if n.Raw != "" {
			b.WriteString(n.Raw)
		} else {
			b.WriteString(formatNumber(n.Value))
		}
	case *Str:
		b.WriteString(Quote(n.Value))
	case *Const:
		switch n.Value {
		case true:
			b.WriteString("True")
		case false:
			b.WriteString("False")
		default:
			b.WriteString("None")
		}
	case *Name:
		b.WriteString(n.ID)
	case *Unary:
		if n.Op == "not" {
			b.WriteString("not ")
			format(b, n.X, precNot)
		} else {
			b.WriteString(n.Op)
			format(b, n.X, precUnary)
		}
	case *Binary:
		p := precOf(n)
		if n.Op == "**" {
			format(b, n.X, precPrimary)
			b.WriteString(" ** ")
			format(b, n.Y, precUnary)
			break
		}
		format(b, n.X, p)
		b.WriteString(" " + n.Op + " ")
		format(b, n.Y, p+1)
	case *Compare:
		format(b, n.X, precArith)
		for i, op := range n.Ops {
			b.WriteString(" " + op + " ")
			format(b, n.Ys[i], precArith)
		}
	case *BoolOp:
		p := precOf(n)
		for i, x := range n.Xs {
			if i > 0 {
				b.WriteString(" " + n.Op + " ")
			}
			format(b, x, p+1)
		}
	case *Cond:
		format(b, n.Then, precOr)
		b.WriteString(" if ")
		format(b, n.Test, precOr)
		b.WriteString(" else ")
		format(b, n.Else, precCond)
	case *Subscript:
		format(b, n.X, precPrimary)
		b.WriteByte('[')
		if t, ok := n.Index.(*Tuple); ok && len(t.Elts) > 0 {
			formatList(b, t.Elts)
		} else {
			format(b, n.Index, precTest)
		}
		b.WriteByte(']')
	case *Call:
		format(b, n.Fn, precPrimary)
		b.WriteByte('(')
		if len(n.Args) == 1 {
			if c, ok := n.Args[0].(*Comp); ok && !c.IsList {
				formatComp(b, c)
				b.WriteByte(')')
				break
			}
		}
		formatList(b, n.Args)
		b.WriteByte(')')
	case *List:
		b.WriteByte('[')
		formatList(b, n.Elts)
		b.WriteByte(']')
	case *Tuple:
		b.WriteByte('(')
		formatList(b, n.Elts)
		if len(n.Elts) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case *Comp:
		if n.IsList {
			b.WriteByte('[')
			formatComp(b, n)
			b.WriteByte(']')
		} else {
			b.WriteByte('(')
			formatComp(b, n)
			b.WriteByte(')')
		}
	}
	if paren {
		b.WriteByte(')')
	}
}

func formatList(b *strings.Builder, xs []Node) {
	for i, x := range xs {
		if i > 0 {
			b.WriteString(", ")
		}
		format(b, x, precTest)
	}
}

func formatComp(b *strings.Builder, c *Comp) {
	format(b, c.Elt, precTest)
	for _, cl := range c.Clauses {
		b.WriteString(" for ")
		b.WriteString(strings.Join(cl.Targets, ", "))
		b.WriteString(" in ")
		format(b, cl.Iter, precOr)
		for _, cond := range cl.Ifs {
			b.WriteString(" if ")
			format(b, cond, precOr)
		}
	}
}

// Quote renders s as a single-quoted string literal.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
