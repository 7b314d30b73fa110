package testutil

import (
	"fmt"

	"github.com/roach88/nlopt/internal/ir"
)

func strs(names ...string) []ir.Value {
	out := make([]ir.Value, len(names))
	for i, n := range names {
		out[i] = ir.String(n)
	}
	return out
}

// Knapsack is the three-item knapsack: optimal value 7 by picking a and b.
func Knapsack() *ir.ModelIR {
	return &ir.ModelIR{
		Meta: ir.MetaInfo{
			ProblemID:   "knapsack",
			Description: "Choose items to maximize total value without exceeding the knapsack capacity.",
			Sense:       ir.SenseMax,
			Version:     ir.SchemaVersion,
		},
		Sets: []ir.SetDef{{Name: "I", Elements: strs("a", "b", "c")}},
		Params: []ir.ParamDef{
			{Name: "weight", Indices: []string{"I"}, Values: ir.DictOf("a", 2, "b", 3, "c", 4)},
			{Name: "value", Indices: []string{"I"}, Values: ir.DictOf("a", 3, "b", 4, "c", 5)},
			{Name: "capacity", Indices: []string{}, Values: ir.Number(6)},
		},
		Vars: []ir.VarDef{{Name: "x", Indices: []string{"I"}, VarType: ir.Binary, LB: 0, UB: ir.Float(1)}},
		Objective: ir.ObjectiveDef{
			Name: "total_value", Sense: ir.SenseMax, Expr: "sum(value[i]*x[i] for i in I)",
		},
		Constraints: []ir.ConstraintDef{{
			Name: "cap", ExprLHS: "sum(weight[i]*x[i] for i in I)", Sense: ir.LE, ExprRHS: "capacity",
		}},
	}
}

// Assignment is the 2x2 assignment problem: optimal cost 3 (w1-t1, w2-t2).
func Assignment() *ir.ModelIR {
	return &ir.ModelIR{
		Meta: ir.MetaInfo{
			ProblemID:   "assignment",
			Description: "Assign each task to exactly one worker at minimum total cost.",
			Sense:       ir.SenseMin,
			Version:     ir.SchemaVersion,
		},
		Sets: []ir.SetDef{
			{Name: "W", Elements: strs("w1", "w2")},
			{Name: "T", Elements: strs("t1", "t2")},
		},
		Params: []ir.ParamDef{{
			Name:    "cost",
			Indices: []string{"W", "T"},
			Values: ir.DictOf(
				"w1", ir.DictOf("t1", 1, "t2", 4),
				"w2", ir.DictOf("t1", 3, "t2", 2),
			),
		}},
		Vars: []ir.VarDef{{Name: "x", Indices: []string{"W", "T"}, VarType: ir.Binary, LB: 0, UB: ir.Float(1)}},
		Objective: ir.ObjectiveDef{
			Name: "total_cost", Sense: ir.SenseMin, Expr: "sum(cost[w][t]*x[w][t] for w in W for t in T)",
		},
		Constraints: []ir.ConstraintDef{
			{Name: "task_t1", ExprLHS: "sum(x[w]['t1'] for w in W)", Sense: ir.EQ, ExprRHS: "1"},
			{Name: "task_t2", ExprLHS: "sum(x[w]['t2'] for w in W)", Sense: ir.EQ, ExprRHS: "1"},
			{Name: "worker_w1", ExprLHS: "sum(x['w1'][t] for t in T)", Sense: ir.LE, ExprRHS: "1"},
			{Name: "worker_w2", ExprLHS: "sum(x['w2'][t] for t in T)", Sense: ir.LE, ExprRHS: "1"},
		},
	}
}

// MaxFlow is the s-a-t triangle: maximum flow 3.
func MaxFlow() *ir.ModelIR {
	nodes := []string{"s", "a", "t"}
	arcs := map[[2]string]float64{{"s", "a"}: 3, {"a", "t"}: 2, {"s", "t"}: 1}

	capacity := ir.NewDict()
	for _, i := range nodes {
		row := ir.NewDict()
		for _, j := range nodes {
			row.Set(j, ir.Number(arcs[[2]string{i, j}]))
		}
		capacity.Set(i, row)
	}

	var cons []ir.ConstraintDef
	for _, i := range nodes {
		for _, j := range nodes {
			cons = append(cons, ir.ConstraintDef{
				Name:    fmt.Sprintf("cap_%s_%s", i, j),
				ExprLHS: fmt.Sprintf("f['%s']['%s']", i, j),
				Sense:   ir.LE,
				ExprRHS: fmt.Sprintf("capacity['%s']['%s']", i, j),
			})
		}
	}
	cons = append(cons,
		ir.ConstraintDef{
			Name:    "balance_s",
			ExprLHS: "sum(f['s'][j] for j in N) - sum(f[j]['s'] for j in N)",
			Sense:   ir.EQ,
			ExprRHS: "F",
		},
		ir.ConstraintDef{
			Name:    "balance_a",
			ExprLHS: "sum(f['a'][j] for j in N) - sum(f[j]['a'] for j in N)",
			Sense:   ir.EQ,
			ExprRHS: "0",
		},
		ir.ConstraintDef{
			Name:    "balance_t",
			ExprLHS: "sum(f[j]['t'] for j in N) - sum(f['t'][j] for j in N)",
			Sense:   ir.EQ,
			ExprRHS: "F",
		},
	)

	return &ir.ModelIR{
		Meta: ir.MetaInfo{
			ProblemID:   "max-flow",
			Description: "Find the maximum flow from source s to sink t through the network arcs.",
			Sense:       ir.SenseMax,
			Version:     ir.SchemaVersion,
		},
		Sets:   []ir.SetDef{{Name: "N", Elements: strs(nodes...)}},
		Params: []ir.ParamDef{{Name: "capacity", Indices: []string{"N", "N"}, Values: capacity}},
		Vars: []ir.VarDef{
			{Name: "F", Indices: []string{}, VarType: ir.Continuous},
			{Name: "f", Indices: []string{"N", "N"}, VarType: ir.Continuous},
		},
		Objective:   ir.ObjectiveDef{Name: "flow", Sense: ir.SenseMax, Expr: "F"},
		Constraints: cons,
	}
}

// Unroll has one constraint over the free symbol p.
func Unroll() *ir.ModelIR {
	return &ir.ModelIR{
		Meta:   ir.MetaInfo{ProblemID: "unroll", Sense: ir.SenseMax, Version: ir.SchemaVersion},
		Sets:   []ir.SetDef{{Name: "P", Elements: strs("p1", "p2")}},
		Params: []ir.ParamDef{},
		Vars:   []ir.VarDef{{Name: "x", Indices: []string{"P"}, VarType: ir.Continuous}},
		Objective: ir.ObjectiveDef{
			Name: "total", Sense: ir.SenseMax, Expr: "sum(x[p] for p in P)",
		},
		Constraints: []ir.ConstraintDef{{Name: "limit", ExprLHS: "x[p]", Sense: ir.LE, ExprRHS: "1"}},
	}
}

// DiagonalFill has a square 2D param missing its diagonal.
func DiagonalFill() *ir.ModelIR {
	return &ir.ModelIR{
		Meta: ir.MetaInfo{ProblemID: "diagonal", Sense: ir.SenseMin, Version: ir.SchemaVersion},
		Sets: []ir.SetDef{{Name: "N", Elements: strs("a", "b")}},
		Params: []ir.ParamDef{{
			Name:    "cost",
			Indices: []string{"N", "N"},
			Values:  ir.DictOf("a", ir.DictOf("b", 1), "b", ir.DictOf("a", 2)),
		}},
		Vars: []ir.VarDef{{Name: "y", Indices: []string{"N", "N"}, VarType: ir.Binary, LB: 0, UB: ir.Float(1)}},
		Objective: ir.ObjectiveDef{
			Name: "total", Sense: ir.SenseMin, Expr: "sum(cost[i][j]*y[i][j] for i in N for j in N)",
		},
		Constraints: []ir.ConstraintDef{{
			Name: "pick_one", ExprLHS: "sum(y[i][j] for i in N for j in N)", Sense: ir.GE, ExprRHS: "1",
		}},
	}
}

// Direction has an equality constraint whose name asks for a lower bound.
func Direction() *ir.ModelIR {
	return &ir.ModelIR{
		Meta:   ir.MetaInfo{ProblemID: "direction", Sense: ir.SenseMin, Version: ir.SchemaVersion},
		Sets:   []ir.SetDef{},
		Params: []ir.ParamDef{{Name: "demand", Indices: []string{}, Values: ir.Number(10)}},
		Vars:   []ir.VarDef{{Name: "prod", Indices: []string{}, VarType: ir.Continuous}},
		Objective: ir.ObjectiveDef{
			Name: "cost", Sense: ir.SenseMin, Expr: "2*prod",
		},
		Constraints: []ir.ConstraintDef{{
			Name: "min_production", ExprLHS: "prod", Sense: ir.EQ, ExprRHS: "demand",
		}},
	}
}
