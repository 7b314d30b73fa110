package solver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is a solver termination code. Values follow the numbering used by
// commercial MILP solvers.
type Status int

const (
	StatusLoaded      Status = 1
	StatusOptimal     Status = 2
	StatusInfeasible  Status = 3
	StatusInfOrUnbd   Status = 4
	StatusUnbounded   Status = 5
	StatusNodeLimit   Status = 8
	StatusTimeLimit   Status = 9
	StatusInterrupted Status = 11
	StatusNumeric     Status = 12
	StatusSuboptimal  Status = 13
)

var statusNames = map[Status]string{
	StatusLoaded:      "LOADED",
	StatusOptimal:     "OPTIMAL",
	StatusInfeasible:  "INFEASIBLE",
	StatusInfOrUnbd:   "INF_OR_UNBD",
	StatusUnbounded:   "UNBOUNDED",
	StatusNodeLimit:   "NODE_LIMIT",
	StatusTimeLimit:   "TIME_LIMIT",
	StatusInterrupted: "INTERRUPTED",
	StatusNumeric:     "NUMERIC",
	StatusSuboptimal:  "SUBOPTIMAL",
}

// String returns the status name, e.g. "OPTIMAL".
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_%d", int(s))
}

// Feasible reports whether a terminal status may carry a usable solution.
// The caller still has to check SolCount for every status but OPTIMAL.
// INTERRUPTED is not feasible: the search was cut short by the caller.
func (s Status) Feasible() bool {
	switch s {
	case StatusOptimal, StatusSuboptimal, StatusTimeLimit, StatusNodeLimit:
		return true
	}
	return false
}

// VarType is the domain of a solver variable.
type VarType int

const (
	Continuous VarType = iota
	Integer
	Binary
)

func (t VarType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	}
	return "continuous"
}

// Sense is an optimization direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Rel is a linear constraint relation.
type Rel string

const (
	LE Rel = "<="
	GE Rel = ">="
	EQ Rel = "=="
)

// Errors returned by models.
var (
	ErrNoSolution  = errors.New("solver: no solution available")
	ErrUnknownVar  = errors.New("solver: unknown variable")
	ErrBadBounds   = errors.New("solver: lower bound exceeds upper bound")
	ErrBadRelation = errors.New("solver: unknown constraint relation")
)

// Backend creates models. Implementations must be safe for concurrent use;
// models need not be.
type Backend interface {
	Name() string
	NewModel(name string) (Model, error)
}

// Model is a single optimization problem.
//
// Bounds use math.Inf for "unbounded". Optimize blocks until the search
// terminates, the time limit elapses or ctx is cancelled; a non-nil error
// means the solver itself failed, while infeasibility and limits are
// reported through Status.
type Model interface {
	Name() string
	AddVar(name string, vt VarType, lb, ub float64) (Var, error)
	AddConstr(name string, lhs LinExpr, rel Rel, rhs LinExpr) error
	SetObjective(e LinExpr, sense Sense) error
	SetTimeLimit(d time.Duration)
	Optimize(ctx context.Context) error
	Status() Status
	ObjVal() (float64, error)
	SolCount() int
	Value(v Var) (float64, error)
	VarName(v Var) string
	NumVars() int
	NumConstrs() int
}
