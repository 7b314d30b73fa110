package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/testutil"
)

func tokenModel() *ir.ModelIR {
	m := testutil.Knapsack()
	m.Meta.Sense = "maximize"
	m.Objective.Sense = "MAX"
	m.Constraints[0].Sense = "\u2264"
	m.Constraints = append(m.Constraints, ir.ConstraintDef{
		Name: "floor", ExprLHS: "x['a']", Sense: "=>", ExprRHS: "0",
	})
	m.Vars[0].VarType = "bin"
	m.Vars[0].UB = nil
	return m
}

// aliasCueModel spells its tokens as aliases on exactly the var and
// constraint that carry discrete and direction cues.
func aliasCueModel() *ir.ModelIR {
	m := testutil.Direction()
	m.Constraints[0].Sense = "="
	m.Vars = append(m.Vars, ir.VarDef{Name: "assign_qty", Indices: []string{}, VarType: "real"})
	return m
}

func TestAliasedTokensStillCued(t *testing.T) {
	m, report := Run(context.Background(), aliasCueModel(), layers(false, true))
	require.True(t, report.OK)

	assert.Len(t, report.RepairsBy("L2-R1"), 1)
	assert.Len(t, report.RepairsBy("L2-R2"), 1)
	assert.Equal(t, ir.GE, m.Constraint("min_production").Sense)
	assert.Equal(t, ir.Integer, m.Var("assign_qty").VarType)
}

// an equality named like a lower bound becomes >=.
func TestDirection(t *testing.T) {
	m, report := Run(context.Background(), testutil.Direction(), layers(false, true))
	require.True(t, report.OK)
	require.Len(t, report.RepairsBy("L2-R2"), 1)

	assert.Equal(t, ir.GE, m.Constraints[0].Sense)
	assert.InDelta(t, 20, *mustSolve(t, m).Objective, 1e-6)
}

func TestDirectionCues(t *testing.T) {
	tests := []struct {
		name        string
		description string
		expected    ir.ConSense
	}{
		{"at_least_demand", "", ir.GE},
		{"demand", "must be no less than the demand", ir.GE},
		{"capacity_limit", "", ir.LE},
		{"budget", "spend up to the budget", ir.LE},
		{"max-hours", "", ir.LE},
		{"min_max_balance", "", ir.EQ},
		{"balance", "flow in equals flow out", ir.EQ},
		{"administration", "", ir.EQ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.Direction()
			m.Constraints[0].Name = tt.name
			m.Constraints[0].Description = tt.description

			out, _ := Run(context.Background(), m, layers(false, true))
			assert.Equal(t, tt.expected, out.Constraints[0].Sense)
		})
	}
}

func TestIntegrality(t *testing.T) {
	tests := []struct {
		name     string
		def      ir.VarDef
		expected ir.VarType
	}{
		{"binary bounds", ir.VarDef{Name: "assign", VarType: ir.Continuous, UB: ir.Float(1)}, ir.Binary},
		{"unbounded", ir.VarDef{Name: "open_count", VarType: ir.Continuous}, ir.Integer},
		{"description cue", ir.VarDef{Name: "z", VarType: ir.Continuous, Description: "Number of trucks to route"}, ir.Integer},
		{"index set cue", ir.VarDef{Name: "z", Indices: []string{"Tasks"}, VarType: ir.Continuous}, ir.Integer},
		{"no cue", ir.VarDef{Name: "amount", VarType: ir.Continuous}, ir.Continuous},
		{"already integer", ir.VarDef{Name: "items", VarType: ir.Integer, UB: ir.Float(1)}, ir.Integer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &ir.ModelIR{
				Meta:      ir.MetaInfo{ProblemID: "p", Sense: ir.SenseMin},
				Sets:      []ir.SetDef{{Name: "Tasks", Elements: strs("t1")}},
				Vars:      []ir.VarDef{tt.def},
				Objective: ir.ObjectiveDef{Sense: ir.SenseMin, Expr: "0"},
			}

			out, _ := Run(context.Background(), m, layers(false, true))

			v := out.Vars[0]
			assert.Equal(t, tt.expected, v.VarType)
			if v.VarType == ir.Binary {
				assert.Equal(t, 0.0, v.LB)
				require.NotNil(t, v.UB)
				assert.Equal(t, 1.0, *v.UB)
			}
		})
	}
}

func TestNormalization(t *testing.T) {
	m, report := Run(context.Background(), tokenModel(), layers(false, true))
	require.True(t, report.OK)
	require.Len(t, report.RepairsBy("L2-R3"), 1)

	assert.Equal(t, ir.SenseMax, m.Meta.Sense)
	assert.Equal(t, ir.SenseMax, m.Objective.Sense)
	assert.Equal(t, ir.LE, m.Constraints[0].Sense)
	assert.Equal(t, ir.GE, m.Constraints[1].Sense)
	assert.Equal(t, ir.Binary, m.Vars[0].VarType)
	require.NotNil(t, m.Vars[0].UB)
	assert.Equal(t, 1.0, *m.Vars[0].UB)
	assert.Empty(t, ir.Validate(m))

	assert.InDelta(t, 7, *mustSolve(t, m).Objective, 1e-6)
}

func TestSenseAgreement(t *testing.T) {
	tests := []struct {
		name      string
		meta, obj ir.ObjSense
		expected  ir.ObjSense
	}{
		{"objective follows meta", ir.SenseMin, ir.SenseMax, ir.SenseMin},
		{"meta filled from objective", "", ir.SenseMax, ir.SenseMax},
		{"objective filled from meta", ir.SenseMax, "", ir.SenseMax},
		{"aliases", "Minimize", "maximise", ir.SenseMin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testutil.Direction()
			m.Meta.Sense = tt.meta
			m.Objective.Sense = tt.obj

			out, _ := Run(context.Background(), m, layers(false, true))

			assert.Equal(t, tt.expected, out.Meta.Sense)
			assert.Equal(t, tt.expected, out.Objective.Sense)
		})
	}
}

func TestLayer2InvariantsOnSeeds(t *testing.T) {
	for _, build := range []func() *ir.ModelIR{
		testutil.Knapsack, testutil.Assignment, testutil.MaxFlow, testutil.Direction, tokenModel,
	} {
		out, _ := Run(context.Background(), build(), layers(true, true))
		assert.Equal(t, out.Meta.Sense, out.Objective.Sense)
		for _, c := range out.Constraints {
			assert.True(t, c.Sense.Valid(), c.Name)
		}
		for _, v := range out.Vars {
			if v.VarType == ir.Binary {
				assert.Equal(t, 0.0, v.LB)
				assert.Equal(t, 1.0, *v.UB)
			}
		}
	}
}
