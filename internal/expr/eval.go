package expr

import (
	"math"
	"strings"

	"github.com/roach88/nlopt/internal/solver"
)

// Namespace binds the names an expression may reference. Values are
// float64, string, bool, ListVal, TupleVal, *Map, solver.Var or
// solver.LinExpr. Helpers are resolved after the namespace.
type Namespace map[string]any

// EvalString parses and evaluates src.
func EvalString(src string, ns Namespace) (any, error) {
	n, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Eval(n, ns)
}

// Eval evaluates an AST against ns.
func Eval(n Node, ns Namespace) (any, error) {
	return eval(n, &scope{ns: ns})
}

// EvalLinear evaluates src and requires a numeric or linear result.
func EvalLinear(src string, ns Namespace) (solver.LinExpr, error) {
	n, err := Parse(src)
	if err != nil {
		return solver.LinExpr{}, err
	}
	v, err := Eval(n, ns)
	if err != nil {
		return solver.LinExpr{}, err
	}
	e, ok := AsLinExpr(v)
	if !ok {
		return solver.LinExpr{}, errorf(KindType, n.Pos(), "expression evaluates to %s, want a number or linear expression", typeName(v))
	}
	return e, nil
}

type scope struct {
	vars   map[string]any
	parent *scope
	ns     Namespace
}

func (s *scope) lookup(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
		if cur.parent == nil {
			if v, ok := cur.ns[name]; ok {
				return v, true
			}
		}
	}
	if b, ok := builtins[name]; ok {
		return b, true
	}
	return nil, false
}

func (s *scope) child() *scope {
	return &scope{vars: make(map[string]any), parent: s}
}

func eval(n Node, sc *scope) (any, error) {
	switch n := n.(type) {
	case *Num:
		return n.Value, nil
	case *Str:
		return n.Value, nil
	case *Const:
		return n.Value, nil
	case *Name:
		v, ok := sc.lookup(n.ID)
		if !ok {
			return nil, errorf(KindName, n.P, "name %q is not defined", n.ID)
		}
		return v, nil
	case *Unary:
		x, err := eval(n.X, sc)
		if err != nil {
			return nil, err
		}
		return unary(n.Op, x, n.P)
	case *Binary:
		x, err := eval(n.X, sc)
		if err != nil {
			return nil, err
		}
		y, err := eval(n.Y, sc)
		if err != nil {
			return nil, err
		}
		return binary(n.Op, x, y, n.P)
	case *Compare:
		return evalCompare(n, sc)
	case *BoolOp:
		var last any
		for _, x := range n.Xs {
			v, err := eval(x, sc)
			if err != nil {
				return nil, err
			}
			t, err := truthy(v, x.Pos())
			if err != nil {
				return nil, err
			}
			last = v
			if (n.Op == "or") == t {
				return v, nil
			}
		}
		return last, nil
	case *Cond:
		test, err := eval(n.Test, sc)
		if err != nil {
			return nil, err
		}
		t, err := truthy(test, n.Test.Pos())
		if err != nil {
			return nil, err
		}
		if t {
			return eval(n.Then, sc)
		}
		return eval(n.Else, sc)
	case *Subscript:
		x, err := eval(n.X, sc)
		if err != nil {
			return nil, err
		}
		idx, err := eval(n.Index, sc)
		if err != nil {
			return nil, err
		}
		return subscript(x, idx, n)
	case *Call:
		fn, err := eval(n.Fn, sc)
		if err != nil {
			return nil, err
		}
		b, ok := fn.(*Builtin)
		if !ok {
			return nil, errorf(KindType, n.P, "%s object is not callable", typeName(fn))
		}
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			if args[i], err = eval(a, sc); err != nil {
				return nil, err
			}
		}
		return b.fn(args, n.P)
	case *List:
		out := make(ListVal, len(n.Elts))
		for i, e := range n.Elts {
			v, err := eval(e, sc)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *Tuple:
		out := make(TupleVal, len(n.Elts))
		for i, e := range n.Elts {
			v, err := eval(e, sc)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *Comp:
		return evalComp(n, sc)
	}
	return nil, errorf(KindSyntax, n.Pos(), "unsupported expression %T", n)
}

func evalComp(c *Comp, sc *scope) (any, error) {
	out := ListVal{}
	var walk func(i int, sc *scope) error
	walk = func(i int, sc *scope) error {
		if i == len(c.Clauses) {
			v, err := eval(c.Elt, sc)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		}
		cl := c.Clauses[i]
		src, err := eval(cl.Iter, sc)
		if err != nil {
			return err
		}
		items, err := iterate(src, cl.Iter.Pos())
		if err != nil {
			return err
		}
	items:
		for _, item := range items {
			inner := sc.child()
			if err := bindTargets(inner, cl.Targets, item, cl.Iter.Pos()); err != nil {
				return err
			}
			for _, cond := range cl.Ifs {
				v, err := eval(cond, inner)
				if err != nil {
					return err
				}
				t, err := truthy(v, cond.Pos())
				if err != nil {
					return err
				}
				if !t {
					continue items
				}
			}
			if err := walk(i+1, inner); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0, sc); err != nil {
		return nil, err
	}
	return out, nil
}

func bindTargets(sc *scope, targets []string, item any, pos int) error {
	if len(targets) == 1 {
		sc.vars[targets[0]] = item
		return nil
	}
	var parts []any
	switch v := item.(type) {
	case TupleVal:
		parts = v
	case ListVal:
		parts = v
	default:
		return errorf(KindType, pos, "cannot unpack %s into %d names", typeName(item), len(targets))
	}
	if len(parts) != len(targets) {
		return errorf(KindValue, pos, "expected %d values to unpack, got %d", len(targets), len(parts))
	}
	for i, t := range targets {
		sc.vars[t] = parts[i]
	}
	return nil
}

func iterate(v any, pos int) ([]any, error) {
	switch v := v.(type) {
	case ListVal:
		return v, nil
	case TupleVal:
		return v, nil
	case *Map:
		return v.Keys(), nil
	case string:
		out := make([]any, 0, len(v))
		for _, r := range v {
			out = append(out, string(r))
		}
		return out, nil
	}
	return nil, errorf(KindType, pos, "%s object is not iterable", typeName(v))
}

func truthy(v any, pos int) (bool, error) {
	switch v := v.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		return v != "", nil
	case ListVal:
		return len(v) > 0, nil
	case TupleVal:
		return len(v) > 0, nil
	case *Map:
		return v.Len() > 0, nil
	case solver.LinExpr:
		if v.IsConstant() {
			return v.Constant() != 0, nil
		}
	}
	return false, errorf(KindType, pos, "truth value of %s is undefined", typeName(v))
}

func unary(op string, x any, pos int) (any, error) {
	if op == "not" {
		t, err := truthy(x, pos)
		if err != nil {
			return nil, err
		}
		return !t, nil
	}
	if f, ok := asNumber(x); ok {
		if op == "-" {
			return -f, nil
		}
		return f, nil
	}
	if e, ok := AsLinExpr(x); ok {
		if op == "-" {
			return e.Scale(-1), nil
		}
		return e, nil
	}
	return nil, errorf(KindType, pos, "bad operand type for unary %s: %s", op, typeName(x))
}

func binary(op string, x, y any, pos int) (any, error) {
	if isLinear(x) || isLinear(y) {
		return linearBinary(op, x, y, pos)
	}
	if a, ok := asNumber(x); ok {
		if b, ok := asNumber(y); ok {
			return numericBinary(op, a, b, pos)
		}
	}
	if op == "+" {
		switch a := x.(type) {
		case string:
			if b, ok := y.(string); ok {
				return a + b, nil
			}
		case ListVal:
			if b, ok := y.(ListVal); ok {
				return append(append(ListVal{}, a...), b...), nil
			}
		case TupleVal:
			if b, ok := y.(TupleVal); ok {
				return append(append(TupleVal{}, a...), b...), nil
			}
		}
	}
	return nil, errorf(KindType, pos, "unsupported operand types for %s: %s and %s", op, typeName(x), typeName(y))
}

func numericBinary(op string, a, b float64, pos int) (any, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, errorf(KindValue, pos, "division by zero")
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return nil, errorf(KindValue, pos, "integer division by zero")
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return nil, errorf(KindValue, pos, "modulo by zero")
		}
		return a - b*math.Floor(a/b), nil
	case "**":
		if a == 0 && b < 0 {
			return nil, errorf(KindValue, pos, "zero cannot be raised to a negative power")
		}
		r := math.Pow(a, b)
		if math.IsNaN(r) {
			return nil, errorf(KindValue, pos, "%s ** %s is not a real number", formatNumber(a), formatNumber(b))
		}
		return r, nil
	}
	return nil, errorf(KindType, pos, "unsupported operator %s", op)
}

func linearBinary(op string, x, y any, pos int) (any, error) {
	a, okA := AsLinExpr(x)
	b, okB := AsLinExpr(y)
	if !okA || !okB {
		return nil, errorf(KindType, pos, "unsupported operand types for %s: %s and %s", op, typeName(x), typeName(y))
	}
	switch op {
	case "+":
		return a.Add(b), nil
	case "-":
		return a.Sub(b), nil
	case "*":
		switch {
		case a.IsConstant():
			return b.Scale(a.Constant()), nil
		case b.IsConstant():
			return a.Scale(b.Constant()), nil
		}
		return nil, errorf(KindNonlinear, pos, "product of two variable expressions is not linear")
	case "/":
		if !b.IsConstant() {
			return nil, errorf(KindNonlinear, pos, "division by a variable expression is not linear")
		}
		if b.Constant() == 0 {
			return nil, errorf(KindValue, pos, "division by zero")
		}
		return a.Scale(1 / b.Constant()), nil
	case "**":
		if !b.IsConstant() {
			return nil, errorf(KindNonlinear, pos, "variable exponent is not linear")
		}
		switch k := b.Constant(); {
		case a.IsConstant():
			return numericBinary(op, a.Constant(), k, pos)
		case k == 1:
			return a, nil
		case k == 0:
			return 1.0, nil
		}
		return nil, errorf(KindNonlinear, pos, "power of a variable expression is not linear")
	case "//", "%":
		if a.IsConstant() && b.IsConstant() {
			return numericBinary(op, a.Constant(), b.Constant(), pos)
		}
		return nil, errorf(KindNonlinear, pos, "operator %s on a variable expression is not linear", op)
	}
	return nil, errorf(KindType, pos, "unsupported operator %s", op)
}

func evalCompare(n *Compare, sc *scope) (any, error) {
	left, err := eval(n.X, sc)
	if err != nil {
		return nil, err
	}
	for i, op := range n.Ops {
		right, err := eval(n.Ys[i], sc)
		if err != nil {
			return nil, err
		}
		ok, err := compare(op, left, right, n.Ys[i].Pos())
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func compare(op string, x, y any, pos int) (bool, error) {
	if isLinear(x) || isLinear(y) {
		return false, errorf(KindType, pos, "comparison of variable expressions is only allowed between constraint sides")
	}
	switch op {
	case "in", "not in":
		found, err := contains(y, x, pos)
		if err != nil {
			return false, err
		}
		return found == (op == "in"), nil
	case "==":
		return valuesEqual(x, y), nil
	case "!=":
		return !valuesEqual(x, y), nil
	}
	var c int
	if a, ok := asNumber(x); ok {
		b, ok := asNumber(y)
		if !ok {
			return false, errorf(KindType, pos, "%s not supported between %s and %s", op, typeName(x), typeName(y))
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	} else if a, ok := x.(string); ok {
		b, ok := y.(string)
		if !ok {
			return false, errorf(KindType, pos, "%s not supported between %s and %s", op, typeName(x), typeName(y))
		}
		c = strings.Compare(a, b)
	} else {
		return false, errorf(KindType, pos, "%s not supported between %s and %s", op, typeName(x), typeName(y))
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	}
	return c >= 0, nil
}

func contains(container, item any, pos int) (bool, error) {
	switch c := container.(type) {
	case ListVal:
		for _, e := range c {
			if valuesEqual(e, item) {
				return true, nil
			}
		}
		return false, nil
	case TupleVal:
		for _, e := range c {
			if valuesEqual(e, item) {
				return true, nil
			}
		}
		return false, nil
	case *Map:
		_, ok := c.Get(item)
		return ok, nil
	case string:
		s, ok := item.(string)
		if !ok {
			return false, errorf(KindType, pos, "'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	}
	return false, errorf(KindType, pos, "argument of type %s is not iterable", typeName(container))
}

func valuesEqual(x, y any) bool {
	if a, ok := asNumber(x); ok {
		b, ok := asNumber(y)
		return ok && a == b
	}
	switch a := x.(type) {
	case nil:
		return y == nil
	case string:
		b, ok := y.(string)
		return ok && a == b
	case ListVal:
		b, ok := y.(ListVal)
		return ok && seqEqual(a, b)
	case TupleVal:
		b, ok := y.(TupleVal)
		return ok && seqEqual(a, b)
	case *Map:
		b, ok := y.(*Map)
		return ok && a == b
	}
	return false
}

func seqEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valuesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func subscript(x, idx any, n *Subscript) (any, error) {
	switch c := x.(type) {
	case *Map:
		if v, ok := c.Get(idx); ok {
			return v, nil
		}
		if t, ok := idx.(TupleVal); ok && len(t) > 1 {
			// x[i, j] on nested maps walks one level per element.
			var cur any = c
			for _, k := range t {
				m, ok := cur.(*Map)
				if !ok {
					return nil, errorf(KindType, n.P, "%s object is not subscriptable", typeName(cur))
				}
				v, ok := m.Get(k)
				if !ok {
					return nil, keyError(n, k)
				}
				cur = v
			}
			return cur, nil
		}
		if _, err := hashKey(idx); err != nil {
			return nil, errorf(KindType, n.P, "%v", err)
		}
		return nil, keyError(n, idx)
	case ListVal, TupleVal, string:
		f, ok := asNumber(idx)
		if !ok || f != math.Trunc(f) {
			return nil, errorf(KindType, n.P, "%s indices must be integers, not %s", typeName(x), typeName(idx))
		}
		var seq []any
		switch c := c.(type) {
		case ListVal:
			seq = c
		case TupleVal:
			seq = c
		case string:
			runes := []rune(c)
			seq = make([]any, len(runes))
			for i, r := range runes {
				seq[i] = string(r)
			}
		}
		i := int(f)
		if i < 0 {
			i += len(seq)
		}
		if i < 0 || i >= len(seq) {
			return nil, errorf(KindKey, n.P, "%s index %s out of range", typeName(x), formatNumber(f))
		}
		return seq[i], nil
	}
	return nil, errorf(KindType, n.P, "%s object is not subscriptable", typeName(x))
}

func keyError(n *Subscript, key any) error {
	if base := baseName(n); base != "" {
		return errorf(KindKey, n.P, "key %s not found in %s", Repr(key), base)
	}
	return errorf(KindKey, n.P, "key %s not found", Repr(key))
}

// baseName returns the root identifier of a subscript chain, if any.
func baseName(n Node) string {
	for {
		switch v := n.(type) {
		case *Subscript:
			n = v.X
		case *Name:
			return v.ID
		default:
			return ""
		}
	}
}
