package lower

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/nlopt/internal/expr"
	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/solver"
)

// Build creates a solver model named after meta.problem_id and populates its
// variables, objective and constraints. The model is returned unoptimized.
func Build(ctx context.Context, m *ir.ModelIR, backend solver.Backend) (solver.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model, err := backend.NewModel(m.Meta.ProblemID)
	if err != nil {
		return nil, &BuildError{Kind: KindSolver, Component: "model", Err: err}
	}

	ns, err := Namespace(m, model)
	if err != nil {
		return nil, err
	}

	obj, err := expr.EvalLinear(m.Objective.Expr, ns)
	if err != nil {
		return nil, exprError("objective", err)
	}
	sense, err := objectiveSense(m)
	if err != nil {
		return nil, &BuildError{Kind: KindEvalError, Component: "objective", Err: err}
	}
	if err := model.SetObjective(obj, sense); err != nil {
		return nil, &BuildError{Kind: KindSolver, Component: "objective", Err: err}
	}

	for _, c := range m.Constraints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		component := "constraint:" + c.Name
		rel, ok := relations[c.Sense]
		if !ok {
			return nil, buildErrorf(KindEvalError, component, "unsupported sense %q", c.Sense)
		}
		lhs, err := expr.EvalLinear(c.ExprLHS, ns)
		if err != nil {
			return nil, exprError(component, err)
		}
		rhs, err := expr.EvalLinear(c.ExprRHS, ns)
		if err != nil {
			return nil, exprError(component, err)
		}
		if err := model.AddConstr(c.Name, lhs, rel, rhs); err != nil {
			return nil, &BuildError{Kind: KindSolver, Component: component, Err: err}
		}
	}
	return model, nil
}

var relations = map[ir.ConSense]solver.Rel{
	ir.LE: solver.LE,
	ir.GE: solver.GE,
	ir.EQ: solver.EQ,
}

// objectiveSense uses objective.sense, falling back to meta.sense.
func objectiveSense(m *ir.ModelIR) (solver.Sense, error) {
	s := m.Objective.Sense
	if s == "" {
		s = m.Meta.Sense
	}
	switch s {
	case ir.SenseMax:
		return solver.Maximize, nil
	case ir.SenseMin, "":
		return solver.Minimize, nil
	}
	return solver.Minimize, fmt.Errorf("unsupported sense %q", s)
}

// Namespace binds sets, params and vars of m for expression evaluation and
// adds one solver variable per var element to model. Later definitions
// shadow earlier ones with the same name.
func Namespace(m *ir.ModelIR, model solver.Model) (expr.Namespace, error) {
	ns := expr.Namespace{}
	sets := make(map[string][]ir.Value, len(m.Sets))

	for _, s := range m.Sets {
		elems := make(expr.ListVal, len(s.Elements))
		for i, e := range s.Elements {
			elems[i] = toExpr(e)
		}
		ns[s.Name] = elems
		sets[s.Name] = s.Elements
	}

	for _, p := range m.Params {
		v, err := bindParam(p)
		if err != nil {
			return nil, err
		}
		ns[p.Name] = v
	}

	for _, v := range m.Vars {
		h, err := bindVar(v, sets, model)
		if err != nil {
			return nil, err
		}
		ns[v.Name] = h
	}
	return ns, nil
}

func bindParam(p ir.ParamDef) (any, error) {
	component := "param:" + p.Name
	switch len(p.Indices) {
	case 0:
		switch v := p.Values.(type) {
		case ir.Number:
			return float64(v), nil
		case ir.Bool:
			n, _ := ir.AsNumber(v)
			return n, nil
		}
		return nil, buildErrorf(KindUnsupportedShape, component, "scalar param needs a number, got %s", shapeName(p.Values))
	case 1:
		d, ok := p.Values.(*ir.Dict)
		if !ok {
			return nil, buildErrorf(KindUnsupportedShape, component, "1D param needs a dict, got %s", shapeName(p.Values))
		}
		return toExpr(d), nil
	case 2:
		d, ok := p.Values.(*ir.Dict)
		if !ok {
			return nil, buildErrorf(KindUnsupportedShape, component, "2D param needs a nested dict, got %s", shapeName(p.Values))
		}
		for _, e := range d.Entries() {
			if _, ok := e.Val.(*ir.Dict); !ok {
				return nil, buildErrorf(KindUnsupportedShape, component,
					"2D param needs a nested dict; entry %s is %s", ir.KeyString(e.Key), shapeName(e.Val))
			}
		}
		return toExpr(d), nil
	}
	return nil, buildErrorf(KindUnsupportedShape, component, "%d indices; at most 2 are supported", len(p.Indices))
}

var varTypes = map[ir.VarType]solver.VarType{
	ir.Continuous: solver.Continuous,
	ir.Integer:    solver.Integer,
	ir.Binary:     solver.Binary,
	"":            solver.Continuous,
}

func bindVar(v ir.VarDef, sets map[string][]ir.Value, model solver.Model) (any, error) {
	component := "var:" + v.Name
	vt, ok := varTypes[v.VarType]
	if !ok {
		return nil, buildErrorf(KindUnsupportedShape, component, "unsupported vartype %q", v.VarType)
	}
	ub := math.Inf(1)
	if v.UB != nil {
		ub = *v.UB
	}
	add := func(name string) (solver.Var, error) {
		h, err := model.AddVar(name, vt, v.LB, ub)
		if err != nil {
			return 0, &BuildError{Kind: KindSolver, Component: component, Err: err}
		}
		return h, nil
	}

	if len(v.Indices) > 2 {
		return nil, buildErrorf(KindUnsupportedShape, component, "%d indices; at most 2 are supported", len(v.Indices))
	}
	dims := make([][]ir.Value, len(v.Indices))
	for i, name := range v.Indices {
		elems, ok := sets[name]
		if !ok {
			return nil, buildErrorf(KindUnknownName, component, "index set %q is not defined", name)
		}
		dims[i] = elems
	}

	switch len(dims) {
	case 0:
		return add(v.Name)
	case 1:
		out := expr.NewMap()
		for _, e := range dims[0] {
			h, err := add(fmt.Sprintf("%s[%s]", v.Name, ir.KeyString(e)))
			if err != nil {
				return nil, err
			}
			if err := out.Set(toKey(e), h); err != nil {
				return nil, &BuildError{Kind: KindBadKey, Component: component, Err: err}
			}
		}
		return out, nil
	}
	out := expr.NewMap()
	for _, a := range dims[0] {
		row := expr.NewMap()
		for _, b := range dims[1] {
			h, err := add(fmt.Sprintf("%s[%s,%s]", v.Name, ir.KeyString(a), ir.KeyString(b)))
			if err != nil {
				return nil, err
			}
			if err := row.Set(toKey(b), h); err != nil {
				return nil, &BuildError{Kind: KindBadKey, Component: component, Err: err}
			}
		}
		if err := out.Set(toKey(a), row); err != nil {
			return nil, &BuildError{Kind: KindBadKey, Component: component, Err: err}
		}
	}
	return out, nil
}

// toExpr converts an IR value into an interpreter value. List values used
// as dict keys become tuples so they stay hashable.
func toExpr(v ir.Value) any {
	switch val := v.(type) {
	case ir.String:
		return string(val)
	case ir.Number:
		return float64(val)
	case ir.Bool:
		return bool(val)
	case ir.List:
		out := make(expr.ListVal, len(val))
		for i, e := range val {
			out[i] = toExpr(e)
		}
		return out
	case *ir.Dict:
		out := expr.NewMap()
		for _, e := range val.Entries() {
			// Every converted key is hashable, so Set cannot fail.
			_ = out.Set(toKey(e.Key), toExpr(e.Val))
		}
		return out
	}
	return nil
}

func toKey(v ir.Value) any {
	if list, ok := v.(ir.List); ok {
		out := make(expr.TupleVal, len(list))
		for i, e := range list {
			out[i] = toKey(e)
		}
		return out
	}
	if _, ok := v.(*ir.Dict); ok {
		return ir.KeyString(v)
	}
	return toExpr(v)
}

func shapeName(v ir.Value) string {
	switch v.(type) {
	case nil, ir.Null:
		return "null"
	case ir.String:
		return "a string"
	case ir.Number:
		return "a number"
	case ir.Bool:
		return "a bool"
	case ir.List:
		return "a list"
	case *ir.Dict:
		return "a dict"
	}
	return fmt.Sprintf("%T", v)
}
