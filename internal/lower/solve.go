package lower

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/solver"
)

// Outcome is the result of optimizing a built model.
type Outcome struct {
	Status    solver.Status      `json:"status"`
	Objective *float64           `json:"objective"`
	SolCount  int                `json:"sol_count"`
	Values    map[string]float64 `json:"values,omitempty"`
	Runtime   time.Duration      `json:"runtime"`
}

// Acceptable reports whether the outcome carries a usable solution:
// OPTIMAL, or a limit status with at least one solution.
func (o *Outcome) Acceptable() bool {
	if o == nil || !o.Status.Feasible() {
		return false
	}
	return o.Status == solver.StatusOptimal || o.SolCount > 0
}

// OptimizeError wraps a failure raised by the solver during Optimize.
type OptimizeError struct {
	Err error
}

func (e *OptimizeError) Error() string {
	return fmt.Sprintf("optimize: %v", e.Err)
}

func (e *OptimizeError) Unwrap() error {
	return e.Err
}

// Optimize runs model under timeLimit (zero means no limit) and collects
// the outcome. Solution values are read only when a solution exists.
func Optimize(ctx context.Context, model solver.Model, timeLimit time.Duration) (*Outcome, error) {
	if timeLimit > 0 {
		model.SetTimeLimit(timeLimit)
	}
	start := time.Now()
	if err := model.Optimize(ctx); err != nil {
		return nil, &OptimizeError{Err: err}
	}
	out := &Outcome{
		Status:   model.Status(),
		SolCount: model.SolCount(),
		Runtime:  time.Since(start),
	}
	if out.SolCount == 0 {
		return out, nil
	}
	obj, err := model.ObjVal()
	if err != nil {
		return nil, &OptimizeError{Err: err}
	}
	out.Objective = &obj
	out.Values = make(map[string]float64, model.NumVars())
	for i := range model.NumVars() {
		v := solver.Var(i)
		x, err := model.Value(v)
		if err != nil {
			return nil, &OptimizeError{Err: err}
		}
		out.Values[model.VarName(v)] = x
	}
	return out, nil
}

// Solve builds m and optimizes it. Build failures are *BuildError and
// solver failures are *OptimizeError.
func Solve(ctx context.Context, m *ir.ModelIR, backend solver.Backend, timeLimit time.Duration) (*Outcome, error) {
	model, err := Build(ctx, m, backend)
	if err != nil {
		return nil, err
	}
	return Optimize(ctx, model, timeLimit)
}
