package expr

import (
	"fmt"
	"strings"

	"github.com/roach88/nlopt/internal/solver"
)

// ListVal is a list value.
type ListVal []any

// TupleVal is a tuple value. Tuples are hashable and may key a Map.
type TupleVal []any

// Map is an insertion-ordered mapping keyed by hashable values (numbers,
// strings, booleans and tuples). The number 1 and the string "1" are
// different keys.
type Map struct {
	keys []any
	vals map[string]any
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{vals: make(map[string]any)}
}

// Set assigns key k.
func (m *Map) Set(k, v any) error {
	id, err := hashKey(k)
	if err != nil {
		return err
	}
	if _, ok := m.vals[id]; !ok {
		m.keys = append(m.keys, k)
	}
	m.vals[id] = v
	return nil
}

// Get looks up key k.
func (m *Map) Get(k any) (any, bool) {
	id, err := hashKey(k)
	if err != nil {
		return nil, false
	}
	v, ok := m.vals[id]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []any {
	return m.keys
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.keys)
}

func hashKey(k any) (string, error) {
	switch v := k.(type) {
	case string:
		return "s:" + v, nil
	case float64:
		return "n:" + formatNumber(v), nil
	case bool:
		if v {
			return "n:1", nil
		}
		return "n:0", nil
	case nil:
		return "z:", nil
	case TupleVal:
		parts := make([]string, len(v))
		for i, e := range v {
			h, err := hashKey(e)
			if err != nil {
				return "", err
			}
			parts[i] = h
		}
		return "t:(" + strings.Join(parts, "\x1f") + ")", nil
	}
	return "", fmt.Errorf("unhashable type: %s", typeName(k))
}

// Builtin is a helper function callable from expressions.
type Builtin struct {
	Name string
	fn   func(args []any, pos int) (any, error)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case float64:
		return "number"
	case string:
		return "str"
	case bool:
		return "bool"
	case ListVal:
		return "list"
	case TupleVal:
		return "tuple"
	case *Map:
		return "dict"
	case solver.Var, solver.LinExpr:
		return "LinExpr"
	case *Builtin:
		return "builtin"
	}
	return fmt.Sprintf("%T", v)
}

// Repr renders a value for error messages.
func Repr(v any) string {
	switch v := v.(type) {
	case nil:
		return "None"
	case string:
		return Quote(v)
	case float64:
		return formatNumber(v)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case ListVal:
		return "[" + reprList(v) + "]"
	case TupleVal:
		if len(v) == 1 {
			return "(" + reprList(v) + ",)"
		}
		return "(" + reprList(v) + ")"
	case *Map:
		parts := make([]string, 0, v.Len())
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			parts = append(parts, Repr(k)+": "+Repr(val))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case solver.Var:
		return v.Expr().String()
	case solver.LinExpr:
		return v.String()
	case *Builtin:
		return "<built-in function " + v.Name + ">"
	}
	return fmt.Sprint(v)
}

func reprList(vs []any) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = Repr(v)
	}
	return strings.Join(parts, ", ")
}

// AsLinExpr converts a numeric or linear value into a solver expression.
func AsLinExpr(v any) (solver.LinExpr, bool) {
	switch v := v.(type) {
	case solver.LinExpr:
		return v, true
	case solver.Var:
		return v.Expr(), true
	case float64:
		return solver.Const(v), true
	case bool:
		if v {
			return solver.Const(1), true
		}
		return solver.Const(0), true
	}
	return solver.LinExpr{}, false
}

func isLinear(v any) bool {
	switch v.(type) {
	case solver.LinExpr, solver.Var:
		return true
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
