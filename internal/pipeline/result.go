package pipeline

import (
	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/lower"
	"github.com/roach88/nlopt/internal/verifier"
)

// Instance is one question to solve.
type Instance struct {
	ID       string `json:"id" yaml:"id"`
	Question string `json:"question" yaml:"question"`
}

// Result is the outcome of one run. It is always well formed: an unsolved
// run has a FailureStage and a nil Objective.
type Result struct {
	InstanceID     string           `json:"instance_id"`
	IRDict         *ir.Dict         `json:"ir_dict"`
	IR             *ir.ModelIR      `json:"ir"`
	StatusCode     int              `json:"status_code"`
	StatusName     string           `json:"status_name"`
	Objective      *float64         `json:"objective"`
	VerifierReport *verifier.Report `json:"verifier_report"`
	FailureStage   Stage            `json:"failure_stage,omitempty"`
	Error          string           `json:"error,omitempty"`
	Trace          Trace            `json:"trace"`

	err error
}

// Err returns the *StageError that stopped the run, or nil.
func (r *Result) Err() error {
	return r.err
}

// Solved reports whether the run produced an objective value.
func (r *Result) Solved() bool {
	return r.Objective != nil
}

// Trace is the diagnostic record of a run.
type Trace struct {
	Model        string          `json:"model"`
	TimeLimit    float64         `json:"time_limit_s"`
	Switches     Switches        `json:"switches"`
	FailureStage Stage           `json:"failure_stage,omitempty"`
	Error        string          `json:"error,omitempty"`
	Issues       []string        `json:"issues"`
	Repairs      []string        `json:"repairs"`
	Notes        []string        `json:"notes,omitempty"`
	Stages       []StageTiming   `json:"stages"`
	Estimator    *EstimatorTrace `json:"estimator,omitempty"`
	IRHash       string          `json:"ir_hash,omitempty"`
}

// Switches echoes the feature toggles a run used.
type Switches struct {
	Layer1    bool `json:"layer1"`
	Layer2    bool `json:"layer2"`
	Layer3    bool `json:"layer3"`
	Repairs   bool `json:"repairs"`
	Estimator bool `json:"estimator"`
}

// StageTiming is the wall time spent in one stage.
type StageTiming struct {
	Stage   Stage   `json:"stage"`
	Seconds float64 `json:"seconds"`
}

// EstimatorTrace records the self-check and its tie-break.
type EstimatorTrace struct {
	Confidence       float64  `json:"confidence"`
	Corrected        bool     `json:"corrected"`
	RebuildStatus    string   `json:"rebuild_status,omitempty"`
	RebuildObjective *float64 `json:"rebuild_objective,omitempty"`
	Decision         Decision `json:"decision,omitempty"`
}

func (r *Result) setOutcome(out *lower.Outcome) {
	r.StatusCode = int(out.Status)
	r.StatusName = out.Status.String()
	r.Objective = nil
	if out.Acceptable() {
		r.Objective = out.Objective
	}
}
