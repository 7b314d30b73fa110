package expr

import (
	"math"
	"slices"

	"github.com/roach88/nlopt/internal/solver"
)

// maxRange caps range() so a bad bound cannot exhaust memory.
const maxRange = 1_000_000

var builtins = map[string]*Builtin{
	"sum":       {Name: "sum", fn: builtinSum},
	"quicksum":  {Name: "quicksum", fn: builtinQuicksum},
	"range":     {Name: "range", fn: builtinRange},
	"len":       {Name: "len", fn: builtinLen},
	"min":       {Name: "min", fn: builtinMinMax("min", -1)},
	"max":       {Name: "max", fn: builtinMinMax("max", 1)},
	"abs":       {Name: "abs", fn: builtinAbs},
	"enumerate": {Name: "enumerate", fn: builtinEnumerate},
}

// Helpers returns the names of the built-in helpers, sorted.
func Helpers() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsHelper reports whether name is a built-in helper.
func IsHelper(name string) bool {
	_, ok := builtins[name]
	return ok
}

func arity(name string, args []any, lo, hi, pos int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return errorf(KindType, pos, "%s() takes %d argument(s), got %d", name, lo, len(args))
		}
		return errorf(KindType, pos, "%s() takes %d to %d arguments, got %d", name, lo, hi, len(args))
	}
	return nil
}

// accumulate adds items, staying numeric until a linear term appears.
func accumulate(name string, start any, items []any, pos int) (any, error) {
	acc := start
	for _, item := range items {
		v, err := binary("+", acc, item, pos)
		if err != nil {
			return nil, errorf(KindType, pos, "%s() cannot add %s", name, typeName(item))
		}
		acc = v
	}
	return acc, nil
}

func builtinSum(args []any, pos int) (any, error) {
	if err := arity("sum", args, 1, 2, pos); err != nil {
		return nil, err
	}
	items, err := iterate(args[0], pos)
	if err != nil {
		return nil, err
	}
	var start any = 0.0
	if len(args) == 2 {
		if _, ok := AsLinExpr(args[1]); !ok {
			return nil, errorf(KindType, pos, "sum() start must be a number, not %s", typeName(args[1]))
		}
		start = args[1]
	}
	return accumulate("sum", start, items, pos)
}

func builtinQuicksum(args []any, pos int) (any, error) {
	if err := arity("quicksum", args, 1, 1, pos); err != nil {
		return nil, err
	}
	items, err := iterate(args[0], pos)
	if err != nil {
		return nil, err
	}
	v, err := accumulate("quicksum", 0.0, items, pos)
	if err != nil {
		return nil, err
	}
	// quicksum always yields an expression, even over plain numbers.
	e, _ := AsLinExpr(v)
	return e, nil
}

func integral(name string, v any, pos int) (int, error) {
	f, ok := asNumber(v)
	if !ok {
		return 0, errorf(KindType, pos, "%s() argument must be a number, not %s", name, typeName(v))
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, errorf(KindType, pos, "%s() argument %s is not an integer", name, formatNumber(f))
	}
	return int(f), nil
}

func builtinRange(args []any, pos int) (any, error) {
	if err := arity("range", args, 1, 3, pos); err != nil {
		return nil, err
	}
	bounds := make([]int, len(args))
	for i, a := range args {
		n, err := integral("range", a, pos)
		if err != nil {
			return nil, err
		}
		bounds[i] = n
	}
	start, stop, step := 0, 0, 1
	switch len(bounds) {
	case 1:
		stop = bounds[0]
	case 2:
		start, stop = bounds[0], bounds[1]
	case 3:
		start, stop, step = bounds[0], bounds[1], bounds[2]
	}
	if step == 0 {
		return nil, errorf(KindValue, pos, "range() step must not be zero")
	}
	n := 0
	if step > 0 && stop > start {
		n = (stop - start + step - 1) / step
	} else if step < 0 && stop < start {
		n = (start - stop - step - 1) / -step
	}
	if n > maxRange {
		return nil, errorf(KindValue, pos, "range() of %d elements exceeds the limit of %d", n, maxRange)
	}
	out := make(ListVal, n)
	for i := range n {
		out[i] = float64(start + i*step)
	}
	return out, nil
}

func builtinLen(args []any, pos int) (any, error) {
	if err := arity("len", args, 1, 1, pos); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case ListVal:
		return float64(len(v)), nil
	case TupleVal:
		return float64(len(v)), nil
	case *Map:
		return float64(v.Len()), nil
	case string:
		return float64(len([]rune(v))), nil
	}
	return nil, errorf(KindType, pos, "object of type %s has no len()", typeName(args[0]))
}

func builtinMinMax(name string, dir float64) func([]any, int) (any, error) {
	return func(args []any, pos int) (any, error) {
		if len(args) == 0 {
			return nil, errorf(KindType, pos, "%s() expected at least 1 argument", name)
		}
		items := args
		if len(args) == 1 {
			var err error
			if items, err = iterate(args[0], pos); err != nil {
				return nil, err
			}
		}
		if len(items) == 0 {
			return nil, errorf(KindValue, pos, "%s() arg is an empty sequence", name)
		}
		best := math.NaN()
		for _, item := range items {
			if isLinear(item) {
				return nil, errorf(KindNonlinear, pos, "%s() of a variable expression is not linear", name)
			}
			f, ok := asNumber(item)
			if !ok {
				return nil, errorf(KindType, pos, "%s() argument must be numeric, not %s", name, typeName(item))
			}
			if math.IsNaN(best) || (f-best)*dir > 0 {
				best = f
			}
		}
		return best, nil
	}
}

func builtinAbs(args []any, pos int) (any, error) {
	if err := arity("abs", args, 1, 1, pos); err != nil {
		return nil, err
	}
	if e, ok := args[0].(solver.LinExpr); ok && e.IsConstant() {
		return math.Abs(e.Constant()), nil
	}
	if isLinear(args[0]) {
		return nil, errorf(KindNonlinear, pos, "abs() of a variable expression is not linear")
	}
	f, ok := asNumber(args[0])
	if !ok {
		return nil, errorf(KindType, pos, "bad operand type for abs(): %s", typeName(args[0]))
	}
	return math.Abs(f), nil
}

func builtinEnumerate(args []any, pos int) (any, error) {
	if err := arity("enumerate", args, 1, 2, pos); err != nil {
		return nil, err
	}
	items, err := iterate(args[0], pos)
	if err != nil {
		return nil, err
	}
	start := 0
	if len(args) == 2 {
		if start, err = integral("enumerate", args[1], pos); err != nil {
			return nil, err
		}
	}
	out := make(ListVal, len(items))
	for i, item := range items {
		out[i] = TupleVal{float64(start + i), item}
	}
	return out, nil
}
