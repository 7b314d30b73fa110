package solver

import (
	"fmt"
	"slices"
	"strings"
)

// Var is a handle to a variable of one Model.
type Var int

// Expr lifts the variable into a linear expression with coefficient 1.
func (v Var) Expr() LinExpr {
	return LinExpr{terms: map[Var]float64{v: 1}}
}

// LinExpr is an affine expression sum(coef*var) + constant. Operations
// return new expressions and never modify their receivers.
type LinExpr struct {
	terms    map[Var]float64
	constant float64
}

// Const returns the constant expression c.
func Const(c float64) LinExpr {
	return LinExpr{constant: c}
}

// Constant returns the constant part.
func (e LinExpr) Constant() float64 {
	return e.constant
}

// IsConstant reports whether the expression has no variable terms.
func (e LinExpr) IsConstant() bool {
	for _, c := range e.terms {
		if c != 0 {
			return false
		}
	}
	return true
}

// Coef returns the coefficient of v.
func (e LinExpr) Coef(v Var) float64 {
	return e.terms[v]
}

// Vars returns the variables with non-zero coefficients in ascending order.
func (e LinExpr) Vars() []Var {
	vars := make([]Var, 0, len(e.terms))
	for v, c := range e.terms {
		if c != 0 {
			vars = append(vars, v)
		}
	}
	slices.Sort(vars)
	return vars
}

func (e LinExpr) clone() LinExpr {
	out := LinExpr{constant: e.constant, terms: make(map[Var]float64, len(e.terms))}
	for v, c := range e.terms {
		out.terms[v] = c
	}
	return out
}

// Add returns e + o.
func (e LinExpr) Add(o LinExpr) LinExpr {
	out := e.clone()
	out.constant += o.constant
	for v, c := range o.terms {
		out.terms[v] += c
	}
	return out
}

// Sub returns e - o.
func (e LinExpr) Sub(o LinExpr) LinExpr {
	return e.Add(o.Scale(-1))
}

// AddConst returns e + c.
func (e LinExpr) AddConst(c float64) LinExpr {
	out := e.clone()
	out.constant += c
	return out
}

// Scale returns k*e.
func (e LinExpr) Scale(k float64) LinExpr {
	out := LinExpr{constant: e.constant * k, terms: make(map[Var]float64, len(e.terms))}
	for v, c := range e.terms {
		out.terms[v] = c * k
	}
	return out
}

// Eval computes the expression's value for an assignment.
func (e LinExpr) Eval(value func(Var) float64) float64 {
	sum := e.constant
	for _, v := range e.Vars() {
		sum += e.terms[v] * value(v)
	}
	return sum
}

// Format renders the expression using names for variables.
func (e LinExpr) Format(name func(Var) string) string {
	var b strings.Builder
	for i, v := range e.Vars() {
		c := e.terms[v]
		switch {
		case i == 0 && c < 0:
			b.WriteString("-")
		case i > 0 && c < 0:
			b.WriteString(" - ")
		case i > 0:
			b.WriteString(" + ")
		}
		if abs := max(c, -c); abs != 1 {
			fmt.Fprintf(&b, "%g ", abs)
		}
		b.WriteString(name(v))
	}
	switch {
	case b.Len() == 0:
		fmt.Fprintf(&b, "%g", e.constant)
	case e.constant > 0:
		fmt.Fprintf(&b, " + %g", e.constant)
	case e.constant < 0:
		fmt.Fprintf(&b, " - %g", -e.constant)
	}
	return b.String()
}

// String renders the expression with positional variable names.
func (e LinExpr) String() string {
	return e.Format(func(v Var) string { return fmt.Sprintf("v%d", int(v)) })
}
