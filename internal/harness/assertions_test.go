package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/pipeline"
	"github.com/roach88/nlopt/internal/testutil"
	"github.com/roach88/nlopt/internal/verifier"
)

func solvedResult(m *ir.ModelIR, objective float64) *pipeline.Result {
	return &pipeline.Result{
		InstanceID:     "t",
		IR:             m,
		StatusCode:     2,
		StatusName:     "OPTIMAL",
		Objective:      &objective,
		VerifierReport: &verifier.Report{OK: true},
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     "objective",
		Expected: "7",
		Actual:   "6",
		Repairs:  []string{"L1-R4 unroll"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: objective\n")
	assert.Contains(t, msg, "  Expected: 7\n")
	assert.Contains(t, msg, "  Actual: 6\n")
	assert.Contains(t, msg, "Repairs:\n  [1] L1-R4 unroll\n")
}

func TestEvaluateExpect_EmptyExpectPasses(t *testing.T) {
	assert.Empty(t, EvaluateExpect(solvedResult(testutil.Knapsack(), 7), Expect{}))
}

func TestAssertObjective(t *testing.T) {
	tests := []struct {
		name      string
		objective float64
		tolerance float64
		pass      bool
	}{
		{"exact", 7, 0, true},
		{"within default tolerance", 7 + 1e-9, 0, true},
		{"outside default tolerance", 7.01, 0, false},
		{"within custom tolerance", 7.01, 0.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := solvedResult(testutil.Knapsack(), tt.objective)
			err := assertObjective(res, Expect{Objective: float(7), Tolerance: tt.tolerance})
			if tt.pass {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertObjective_Unsolved(t *testing.T) {
	res := &pipeline.Result{
		StatusName:   "NOT_SOLVED",
		FailureStage: pipeline.StageSolverBuild,
		Error:        "unknown name p",
	}
	err := assertObjective(res, Expect{Objective: float(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed at solver_build: unknown name p")
}

func TestAssertFailureStage(t *testing.T) {
	res := solvedResult(testutil.Knapsack(), 7)
	assert.NoError(t, assertFailureStage(res, Expect{}))

	err := assertFailureStage(res, Expect{FailureStage: "verifier"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: verifier")
}

func TestAssertConstraints(t *testing.T) {
	res := solvedResult(testutil.Assignment(), 3)

	assert.NoError(t, assertConstraints(res, Expect{
		Constraints: []string{"task_t1", "task_t2", "worker_w1", "worker_w2"},
	}))
	assert.Error(t, assertConstraints(res, Expect{
		Constraints: []string{"task_t2", "task_t1", "worker_w1", "worker_w2"},
	}), "order matters")
	assert.Error(t, assertConstraints(res, Expect{Constraints: []string{"task_t1"}}))
}

func TestAssertSenses(t *testing.T) {
	res := solvedResult(testutil.Direction(), 20)

	assert.NoError(t, assertSenses(res, Expect{Senses: map[string]string{"min_production": "=="}}))

	err := assertSenses(res, Expect{Senses: map[string]string{"min_production": ">="}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: min_production ==")

	err = assertSenses(res, Expect{Senses: map[string]string{"max_production": "<="}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint not found")
}

func TestParamEntry(t *testing.T) {
	m := testutil.Assignment()
	m.Params = append(m.Params,
		ir.ParamDef{Name: "budget", Indices: []string{}, Values: ir.Number(10)},
		ir.ParamDef{Name: "label", Indices: []string{}, Values: ir.String("x")},
	)

	tests := []struct {
		name   string
		entry  ParamEntry
		want   float64
		errMsg string
	}{
		{"scalar", ParamEntry{Name: "budget"}, 10, ""},
		{"2d", ParamEntry{Name: "cost", Key: []string{"w2", "t1"}}, 3, ""},
		{"missing param", ParamEntry{Name: "price"}, 0, "param price not found"},
		{"missing key", ParamEntry{Name: "cost", Key: []string{"w3", "t1"}}, 0, "key w3 missing"},
		{"too deep", ParamEntry{Name: "budget", Key: []string{"a"}}, 0, "is not a dict at key a"},
		{"row not number", ParamEntry{Name: "cost", Key: []string{"w1"}}, 0, "is not a number"},
		{"string value", ParamEntry{Name: "label"}, 0, "is not a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := paramEntry(m, tt.entry)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssertRules(t *testing.T) {
	res := solvedResult(testutil.Unroll(), 2)
	res.VerifierReport = &verifier.Report{
		OK:      true,
		Issues:  []verifier.Issue{{Layer: verifier.L1, Rule: "L1-R4", Kind: "free_index"}},
		Repairs: []verifier.Repair{{Layer: verifier.L1, Rule: "L1-R4", Action: "unroll"}},
	}

	assert.NoError(t, assertRules(res, Expect{Repairs: []string{"L1-R4"}, Issues: []string{"L1-R4"}}))

	err := assertRules(res, Expect{Repairs: []string{"L1-R3"}, Issues: []string{"L2-R2"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repair L1-R3, issue L2-R2")

	err = assertNoRepairs(res, Expect{NoRepairs: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 repair(s)")

	res.VerifierReport = nil
	err = assertRules(res, Expect{Repairs: []string{"L1-R4"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verifier did not run")
}
