package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/lower"
	"github.com/roach88/nlopt/internal/solver"
	"github.com/roach88/nlopt/internal/testutil"
)

func strs(names ...string) []ir.Value {
	out := make([]ir.Value, len(names))
	for i, n := range names {
		out[i] = ir.String(n)
	}
	return out
}

func mustSolve(t *testing.T, m *ir.ModelIR) *lower.Outcome {
	t.Helper()
	out, err := lower.Solve(context.Background(), m, solver.NewSimplex(), 0)
	require.NoError(t, err)
	require.True(t, out.Acceptable(), "status %s", out.Status)
	return out
}

func numericKeysModel() *ir.ModelIR {
	return &ir.ModelIR{
		Meta: ir.MetaInfo{ProblemID: "numeric", Sense: ir.SenseMax, Version: ir.SchemaVersion},
		Sets: []ir.SetDef{{Name: "I", Elements: []ir.Value{ir.Number(1), ir.Number(2)}}},
		Params: []ir.ParamDef{
			{Name: "cap", Indices: []string{"I"}, Values: ir.NewDict(
				ir.Entry{Key: ir.Number(1), Val: ir.Number(3)},
				ir.Entry{Key: ir.Number(2), Val: ir.Number(4)},
			)},
			{Name: "w", Indices: []string{"I"}, Values: ir.List{ir.Number(1), ir.Number(1)}},
		},
		Vars:      []ir.VarDef{{Name: "x", Indices: []string{"I"}, VarType: ir.Continuous}},
		Objective: ir.ObjectiveDef{Name: "total", Sense: ir.SenseMax, Expr: "sum(w[i]*x[i] for i in I)"},
		Constraints: []ir.ConstraintDef{
			{Name: "first", ExprLHS: "x[1]", Sense: ir.LE, ExprRHS: "cap[1]"},
			{Name: "second", ExprLHS: "x[2]", Sense: ir.LE, ExprRHS: "cap[2]"},
		},
	}
}

func flatPairModel() *ir.ModelIR {
	m := testutil.DiagonalFill()
	m.Params[0].Values = ir.DictOf("(a,b)", 1, "b|a", 2)
	return m
}

func typoModel() *ir.ModelIR {
	return &ir.ModelIR{
		Meta: ir.MetaInfo{ProblemID: "typos", Sense: ir.SenseMax, Version: ir.SchemaVersion},
		Sets: []ir.SetDef{{Name: "P", Elements: strs("p1", "p2")}},
		Vars: []ir.VarDef{{Name: "x", Indices: []string{"P"}, VarType: ir.Continuous}},
		Objective: ir.ObjectiveDef{
			Name: "total", Sense: ir.SenseMax, Expr: "quicksum(x[p], for p in P)",
		},
		Constraints: []ir.ConstraintDef{
			{Name: "pair", ExprLHS: "quicksum(x['p1'], x['p2'])", Sense: ir.LE, ExprRHS: "3"},
			{Name: "each", ExprLHS: "x[p]", Sense: ir.LE, ExprRHS: "2"},
		},
	}
}

func TestStringKeys(t *testing.T) {
	m, report := Run(context.Background(), numericKeysModel(), layers(true, false))
	require.True(t, report.OK)
	require.Len(t, report.RepairsBy("L1-R1"), 1)

	assert.Equal(t, strs("1", "2"), m.Sets[0].Elements)
	assert.True(t, m.Params[0].Values.(*ir.Dict).StringKeyed())
	assert.True(t, ir.Equal(ir.DictOf("1", 1, "2", 1), m.Params[1].Values))
	assert.Equal(t, "x['1']", m.Constraints[0].ExprLHS)
	assert.Equal(t, "cap['1']", m.Constraints[0].ExprRHS)
	assert.Equal(t, "x['2']", m.Constraints[1].ExprLHS)

	out := mustSolve(t, m)
	assert.InDelta(t, 7, *out.Objective, 1e-6)
}

func TestStringKeysSkipsDuplicates(t *testing.T) {
	m := numericKeysModel()
	m.Sets[0].Elements = []ir.Value{ir.Number(1), ir.String("1"), ir.Number(2)}
	m.Params[0].Values = ir.NewDict(
		ir.Entry{Key: ir.Number(1), Val: ir.Number(3)},
		ir.Entry{Key: ir.String("1"), Val: ir.Number(9)},
		ir.Entry{Key: ir.Number(2), Val: ir.Number(4)},
	)

	out, _ := Run(context.Background(), m, layers(true, false))

	assert.Equal(t, strs("1", "2"), out.Sets[0].Elements)
	assert.True(t, ir.Equal(ir.DictOf("1", 3, "2", 4), out.Params[0].Values))
}

func TestNested2D(t *testing.T) {
	tests := []struct {
		name   string
		values ir.Value
	}{
		{"parenthesized", ir.DictOf("(a,b)", 1, "(b,a)", 2)},
		{"comma", ir.DictOf("a,b", 1, "b,a", 2)},
		{"pipe", ir.DictOf("a|b", 1, "b|a", 2)},
		{"tuple keys", ir.NewDict(
			ir.Entry{Key: ir.List{ir.String("a"), ir.String("b")}, Val: ir.Number(1)},
			ir.Entry{Key: ir.List{ir.String("b"), ir.String("a")}, Val: ir.Number(2)},
		)},
		{"row-major lists", ir.List{
			ir.List{ir.Number(0), ir.Number(1)},
			ir.List{ir.Number(2), ir.Number(0)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.DiagonalFill()
			m.Params[0].Values = tt.values

			out, report := Run(context.Background(), m, layers(true, false))
			require.True(t, report.OK)

			cost := out.Params[0].Values.(*ir.Dict)
			row, ok := cost.Get("a")
			require.True(t, ok)
			v, ok := row.(*ir.Dict).Get("b")
			require.True(t, ok)
			assert.Equal(t, ir.Number(1), v)
			row, _ = cost.Get("b")
			v, _ = row.(*ir.Dict).Get("a")
			assert.Equal(t, ir.Number(2), v)

			assert.InDelta(t, 0, *mustSolve(t, out).Objective, 1e-6)
		})
	}
}

func TestNested2DLeavesNestedAlone(t *testing.T) {
	m := testutil.Assignment()
	_, report := Run(context.Background(), m, layers(true, false))
	assert.Empty(t, report.IssuesBy("L1-R2"))
}

// the diagonal of a square param is filled with zeros.
func TestDiagonalFill(t *testing.T) {
	m, report := Run(context.Background(), testutil.DiagonalFill(), layers(true, false))
	require.Len(t, report.RepairsBy("L1-R3"), 1)

	cost := m.Params[0].Values.(*ir.Dict)
	for _, e := range []string{"a", "b"} {
		row, ok := cost.Get(e)
		require.True(t, ok)
		v, ok := row.(*ir.Dict).Get(e)
		require.True(t, ok, "cost[%s][%s]", e, e)
		assert.Equal(t, ir.Number(0), v)
	}
	aRow, _ := cost.Get("a")
	ab, _ := aRow.(*ir.Dict).Get("b")
	assert.Equal(t, ir.Number(1), ab, "existing entries are kept")

	assert.InDelta(t, 0, *mustSolve(t, m).Objective, 1e-6)
}

func TestDiagonalFillAddsMissingRows(t *testing.T) {
	m := testutil.DiagonalFill()
	m.Params[0].Values = ir.DictOf("a", ir.DictOf("b", 1, "a", 5))

	out, _ := Run(context.Background(), m, layers(true, false))

	cost := out.Params[0].Values.(*ir.Dict)
	aRow, _ := cost.Get("a")
	aa, _ := aRow.(*ir.Dict).Get("a")
	assert.Equal(t, ir.Number(5), aa)
	bRow, ok := cost.Get("b")
	require.True(t, ok)
	bb, _ := bRow.(*ir.Dict).Get("b")
	assert.Equal(t, ir.Number(0), bb)
}

// a constraint over a free symbol becomes one constraint per element.
func TestUnroll(t *testing.T) {
	m, report := Run(context.Background(), testutil.Unroll(), layers(true, false))
	require.True(t, report.OK)
	require.Len(t, report.RepairsBy("L1-R4"), 1)

	require.Len(t, m.Constraints, 2)
	assert.Equal(t, "limit__p_p1", m.Constraints[0].Name)
	assert.Equal(t, "x['p1']", m.Constraints[0].ExprLHS)
	assert.Equal(t, "1", m.Constraints[0].ExprRHS)
	assert.Equal(t, ir.LE, m.Constraints[0].Sense)
	assert.Equal(t, "limit__p_p2", m.Constraints[1].Name)
	assert.Equal(t, "x['p2']", m.Constraints[1].ExprLHS)

	assert.InDelta(t, 2, *mustSolve(t, m).Objective, 1e-6)
}

func TestUnrollMultipleSymbols(t *testing.T) {
	m := &ir.ModelIR{
		Meta: ir.MetaInfo{ProblemID: "grid", Sense: ir.SenseMax, Version: ir.SchemaVersion},
		Sets: []ir.SetDef{
			{Name: "A", Elements: strs("a1", "a2")},
			{Name: "B", Elements: strs("b1", "b2")},
		},
		Vars:      []ir.VarDef{{Name: "x", Indices: []string{"A", "B"}, VarType: ir.Continuous}},
		Objective: ir.ObjectiveDef{Sense: ir.SenseMax, Expr: "sum(x[i][j] for i in A for j in B)"},
		Constraints: []ir.ConstraintDef{
			{Name: "cell", ExprLHS: "x[i][j]", Sense: ir.LE, ExprRHS: "1"},
		},
	}

	out, _ := Run(context.Background(), m, layers(true, false))

	var names []string
	for _, c := range out.Constraints {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"cell__i_a1__j_b1", "cell__i_a1__j_b2", "cell__i_a2__j_b1", "cell__i_a2__j_b2",
	}, names)
	assert.Equal(t, "x['a2']['b1']", out.Constraints[2].ExprLHS)
	assert.InDelta(t, 4, *mustSolve(t, out).Objective, 1e-6)
}

func TestUnrollRefusals(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *ir.ModelIR, cfg *Config)
		reason string
	}{
		{
			name:   "over the limit",
			mutate: func(_ *ir.ModelIR, cfg *Config) { cfg.MaxUnroll = 1 },
			reason: "exceed the unroll limit of 1",
		},
		{
			name: "empty set",
			mutate: func(m *ir.ModelIR, _ *Config) {
				m.Sets[0].Elements = []ir.Value{}
			},
			reason: "is empty",
		},
		{
			name: "ambiguous",
			mutate: func(m *ir.ModelIR, _ *Config) {
				m.Sets = append(m.Sets, ir.SetDef{Name: "Q", Elements: strs("q1")})
				m.Vars = append(m.Vars, ir.VarDef{Name: "y", Indices: []string{"Q"}, VarType: ir.Continuous})
				m.Constraints[0].ExprLHS = "x[p] + y[p]"
			},
			reason: "ambiguous",
		},
		{
			name: "not inferable",
			mutate: func(m *ir.ModelIR, _ *Config) {
				m.Constraints[0].ExprLHS = "p + 1"
			},
			reason: "no index set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.Unroll()
			cfg := layers(true, false)
			tt.mutate(m, &cfg)
			before := m.Constraints[0]

			out, report := Run(context.Background(), m, cfg)

			require.Len(t, out.Constraints, 1)
			assert.Equal(t, before, out.Constraints[0])
			assert.Empty(t, report.RepairsBy("L1-R4"))
			issues := report.IssuesBy("L1-R4")
			require.Len(t, issues, 1)
			refused := issues[0].Evidence["refused"].([]unrollRefusal)
			require.Len(t, refused, 1)
			assert.Contains(t, refused[0].Reason, tt.reason)
		})
	}
}

func TestUnrollPrefersGeneratorBinding(t *testing.T) {
	m := testutil.Unroll()
	m.Sets = append(m.Sets, ir.SetDef{Name: "Q", Elements: strs("q1", "q2", "q3")})
	m.Params = []ir.ParamDef{{Name: "c", Indices: []string{"Q"}, Values: ir.DictOf("q1", 1, "q2", 1, "q3", 1)}}
	// p is bound over P inside the sum and free in x[p]; the binding wins
	// over the c[p] use that points at Q.
	m.Constraints[0].ExprLHS = "x[p] + c[p] + sum(x[p] for p in P)"
	m.Constraints[0].ExprRHS = "10"

	out, report := Run(context.Background(), m, layers(true, false))
	require.True(t, report.OK)

	require.Len(t, out.Constraints, 2)
	assert.Equal(t, "limit__p_p1", out.Constraints[0].Name)
}

func TestSumTypos(t *testing.T) {
	m, report := Run(context.Background(), typoModel(), layers(true, false))
	require.True(t, report.OK)
	require.Len(t, report.RepairsBy("L1-R5"), 1)

	assert.Equal(t, "quicksum(x[p] for p in P)", m.Objective.Expr)
	assert.Equal(t, "(x['p1']) + (x['p2'])", m.Constraints[0].ExprLHS)
	assert.Len(t, m.Constraints, 3)
	assert.InDelta(t, 3, *mustSolve(t, m).Objective, 1e-6)
}

func TestUniqueNames(t *testing.T) {
	m := testutil.Knapsack()
	c := m.Constraints[0]
	m.Constraints = []ir.ConstraintDef{c, c, c, c}
	m.Constraints[1].Name = "cap__dup1"
	m.Constraints[3].Name = ""

	out, report := Run(context.Background(), m, layers(true, false))
	require.Len(t, report.RepairsBy("L1-R6"), 1)

	var names []string
	for _, c := range out.Constraints {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"cap", "cap__dup1", "cap__dup2", "constraint_4"}, names)
	assert.Empty(t, ir.Validate(out))
}

// Applying L1 to an IR that already has string keys and closed diagonals
// changes nothing.
func TestLayer1NoOpOnCanonicalIR(t *testing.T) {
	for _, build := range []func() *ir.ModelIR{testutil.Knapsack, testutil.Assignment, testutil.MaxFlow} {
		m := build()
		out, report := Run(context.Background(), m, layers(true, false))
		assert.Empty(t, report.Repairs)
		assert.False(t, report.Layers[L1].ChangedIR)
		assert.Equal(t, ir.MustHash(build()), ir.MustHash(out))
	}
}
