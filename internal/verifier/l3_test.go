package verifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/solver"
	"github.com/roach88/nlopt/internal/testutil"
)

// brokenFlow is the max-flow model with an extra demand it cannot meet.
func brokenFlow() *ir.ModelIR {
	m := testutil.MaxFlow()
	m.Meta.ProblemID = "flow-42"
	m.Meta.Source = "bench"
	m.Constraints = append(m.Constraints, ir.ConstraintDef{
		Name: "bogus", ExprLHS: "F", Sense: ir.GE, ExprRHS: "100",
	})
	return m
}

type fakeRebuilder struct {
	calls   []string
	rebuild func() *ir.ModelIR
	err     error
}

func (f *fakeRebuilder) Rebuild(_ context.Context, _ *ir.ModelIR, t *Template) (*ir.ModelIR, error) {
	f.calls = append(f.calls, t.Name)
	if f.err != nil {
		return nil, f.err
	}
	return f.rebuild(), nil
}

func rescueConfig(rb Rebuilder) Config {
	cfg := DefaultConfig()
	cfg.Rebuilder = rb
	cfg.Backend = solver.NewSimplex()
	return cfg
}

func TestRescueAccepted(t *testing.T) {
	rb := &fakeRebuilder{rebuild: func() *ir.ModelIR {
		m := testutil.MaxFlow()
		m.Meta.ProblemID = "rebuilt"
		m.Meta.Description = ""
		m.Constraints[len(m.Constraints)-1].Sense = "="
		return m
	}}
	m := brokenFlow()

	out, report := Run(context.Background(), m, rescueConfig(rb))

	require.True(t, report.OK)
	assert.Equal(t, []string{"max_flow"}, rb.calls)
	assert.True(t, report.Layers[L3].ChangedIR)
	reps := report.RepairsBy("L3-R1")
	require.Len(t, reps, 1)
	assert.Equal(t, "template_rebuild", reps[0].Action)
	assert.Equal(t, "max_flow", reps[0].Details["template"])
	assert.InDelta(t, 3, reps[0].Details["objective"], 1e-6)
	assert.Contains(t, reps[0].Details["inner_repair"], "L2-R3 normalize_tokens")

	assert.Same(t, m, out)
	assert.Equal(t, "flow-42", out.Meta.ProblemID)
	assert.Equal(t, "bench", out.Meta.Source)
	assert.Equal(t, testutil.MaxFlow().Meta.Description, out.Meta.Description)
	assert.Nil(t, out.Constraint("bogus"))
	assert.InDelta(t, 3, *mustSolve(t, out).Objective, 1e-6)
}

func TestRescueRejected(t *testing.T) {
	tests := []struct {
		name string
		rb   *fakeRebuilder
		note string
	}{
		{"rebuild error", &fakeRebuilder{err: errors.New("llm down")}, "llm down"},
		{"still infeasible", &fakeRebuilder{rebuild: brokenFlow}, "INFEASIBLE"},
		{"does not build", &fakeRebuilder{rebuild: func() *ir.ModelIR {
			m := testutil.MaxFlow()
			m.Objective.Expr = "G"
			return m
		}}, "does not build"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := brokenFlow()
			out, report := Run(context.Background(), m, rescueConfig(tt.rb))

			assert.True(t, report.OK)
			assert.Len(t, tt.rb.calls, 1)
			require.Len(t, report.IssuesBy("L3-R1"), 1)
			assert.Empty(t, report.RepairsBy("L3-R1"))
			assert.False(t, report.Layers[L3].ChangedIR)
			require.NotEmpty(t, report.Notes)
			assert.Contains(t, report.Notes[len(report.Notes)-1], tt.note)
			assert.NotNil(t, out.Constraint("bogus"))
		})
	}
}

func TestRescueDoesNotFire(t *testing.T) {
	tests := []struct {
		name  string
		model func() *ir.ModelIR
	}{
		{"healthy model", testutil.MaxFlow},
		{"healthy knapsack", testutil.Knapsack},
		{"low score", func() *ir.ModelIR {
			m := brokenFlow()
			m.Meta.Description = "an unrelated story"
			m.Vars = m.Vars[1:]
			m.Objective.Expr = "sum(f['s'][j] for j in N)"
			m.Constraints = m.Constraints[:len(m.Constraints)-1]
			m.Constraints = append(m.Constraints, ir.ConstraintDef{
				Name: "bogus", ExprLHS: "f['s']['a']", Sense: ir.GE, ExprRHS: "100",
			})
			return m
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := &fakeRebuilder{rebuild: testutil.MaxFlow}
			_, report := Run(context.Background(), tt.model(), rescueConfig(rb))

			assert.Empty(t, rb.calls)
			assert.Empty(t, report.IssuesBy("L3-R1"))
		})
	}
}

func TestIdentify(t *testing.T) {
	tests := []struct {
		name     string
		model    *ir.ModelIR
		expected string
	}{
		{"knapsack", testutil.Knapsack(), "knapsack"},
		{"assignment", testutil.Assignment(), "assignment"},
		{"max flow", testutil.MaxFlow(), "max_flow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, scores := Identify(tt.model)
			require.NotNil(t, best)
			assert.Equal(t, tt.expected, best.Name)
			assert.Len(t, scores, len(Templates))
			for _, s := range scores {
				if s.Template == best.Name {
					assert.GreaterOrEqual(t, s.Score, DefaultRescueThreshold)
				}
			}
		})
	}
}

func TestKeywordScoreSaturates(t *testing.T) {
	tmpl := TemplateByName("knapsack")
	require.NotNil(t, tmpl)

	assert.Equal(t, 0.0, tmpl.KeywordScore("nothing relevant"))
	assert.Equal(t, 0.25, tmpl.KeywordScore("a KNAPSACK"))
	assert.Equal(t, 0.5, tmpl.KeywordScore("knapsack_items"))
	assert.Equal(t, 1.0, tmpl.KeywordScore("knapsack item weight value capacity budget"))
	assert.Nil(t, TemplateByName("tsp"))
}

func TestFingerprintScore(t *testing.T) {
	flow := TemplateByName("max_flow")
	assert.Equal(t, 1.0, flow.FingerprintScore(testutil.MaxFlow()))

	m := testutil.MaxFlow()
	m.Vars = m.Vars[1:]
	assert.Equal(t, 0.75, flow.FingerprintScore(m))

	assert.Equal(t, 0.25, flow.FingerprintScore(testutil.Knapsack()))
}
