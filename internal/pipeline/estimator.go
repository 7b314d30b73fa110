package pipeline

import (
	"math"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/lower"
	"github.com/roach88/nlopt/internal/solver"
)

// DefaultEstimatorConfidence is the self-check score at or above which the
// first model is trusted over an equally ranked rebuild.
const DefaultEstimatorConfidence = 0.5

// Decision is the estimator's verdict on a corrected model.
type Decision string

const (
	DecisionNoCorrection   Decision = "keep_no_correction"
	DecisionBetterStatus   Decision = "replace_better_status"
	DecisionWorseStatus    Decision = "keep_worse_status"
	DecisionUnsolved       Decision = "keep_unsolved"
	DecisionConfident      Decision = "keep_confident"
	DecisionWorseObjective Decision = "keep_worse_objective"
	DecisionLowConfidence  Decision = "replace_low_confidence"
)

// Replaces reports whether the decision swaps in the corrected model.
func (d Decision) Replaces() bool {
	return d == DecisionBetterStatus || d == DecisionLowConfidence
}

// statusRank orders outcomes: proven optimal, then feasible under a
// limit, then anything without a usable solution.
func statusRank(o *lower.Outcome) int {
	switch {
	case o == nil || !o.Acceptable() || o.Objective == nil:
		return 0
	case o.Status == solver.StatusOptimal:
		return 2
	default:
		return 1
	}
}

// decide picks between the current outcome and the rebuild's. A rebuild
// with a better status always wins. On a tie the rebuild wins only when
// the self-check was unsure and the rebuild's objective is no worse in
// the model's sense.
func decide(sense ir.ObjSense, cur, alt *lower.Outcome, confidence, threshold float64) Decision {
	rc, ra := statusRank(cur), statusRank(alt)
	switch {
	case ra > rc:
		return DecisionBetterStatus
	case ra < rc:
		return DecisionWorseStatus
	case ra == 0:
		return DecisionUnsolved
	case confidence >= threshold:
		return DecisionConfident
	case !noWorse(sense, *cur.Objective, *alt.Objective):
		return DecisionWorseObjective
	}
	return DecisionLowConfidence
}

func noWorse(sense ir.ObjSense, cur, alt float64) bool {
	tol := 1e-9 * math.Max(1, math.Abs(cur))
	if sense == ir.SenseMax {
		return alt >= cur-tol
	}
	return alt <= cur+tol
}

// modelSense is the sense used for the tie-break: meta first, then the
// objective, minimizing when neither is set.
func modelSense(m *ir.ModelIR) ir.ObjSense {
	if m == nil {
		return ir.SenseMin
	}
	if m.Meta.Sense.Valid() {
		return m.Meta.Sense
	}
	if m.Objective.Sense.Valid() {
		return m.Objective.Sense
	}
	return ir.SenseMin
}
