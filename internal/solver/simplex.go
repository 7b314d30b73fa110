package solver

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// DefaultNodeLimit bounds the branch-and-bound tree of the Simplex backend.
const DefaultNodeLimit = 50000

// Simplex is the reference Backend: LP relaxations solved with gonum's
// simplex and depth-first branching on fractional integer variables.
type Simplex struct {
	// NodeLimit caps the number of relaxations solved per Optimize call.
	// Zero means DefaultNodeLimit.
	NodeLimit int

	// Logger receives one debug record per Optimize call.
	// Nil means slog.Default().
	Logger *slog.Logger
}

// NewSimplex returns a Simplex backend with default limits.
func NewSimplex() *Simplex {
	return &Simplex{}
}

// Name implements Backend.
func (s *Simplex) Name() string {
	return "simplex"
}

// NewModel implements Backend.
func (s *Simplex) NewModel(name string) (Model, error) {
	limit := s.NodeLimit
	if limit <= 0 {
		limit = DefaultNodeLimit
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &simplexModel{
		name:      name,
		nodeLimit: limit,
		logger:    logger,
		status:    StatusLoaded,
	}, nil
}

type varInfo struct {
	name   string
	vtype  VarType
	lb, ub float64
}

type constraint struct {
	name string
	expr LinExpr // lhs - rhs
	rel  Rel
}

type simplexModel struct {
	name      string
	nodeLimit int
	logger    *slog.Logger

	vars      []varInfo
	constrs   []constraint
	objective LinExpr
	sense     Sense
	timeLimit time.Duration

	status   Status
	best     []float64
	solCount int
	nodes    int
}

func (m *simplexModel) Name() string { return m.name }

func (m *simplexModel) NumVars() int { return len(m.vars) }

func (m *simplexModel) NumConstrs() int { return len(m.constrs) }

func (m *simplexModel) AddVar(name string, vt VarType, lb, ub float64) (Var, error) {
	if math.IsNaN(lb) || math.IsNaN(ub) {
		return 0, fmt.Errorf("variable %q: NaN bound", name)
	}
	if vt == Binary {
		lb = math.Max(lb, 0)
		ub = math.Min(ub, 1)
	}
	if lb > ub {
		return 0, fmt.Errorf("variable %q: %w (%g > %g)", name, ErrBadBounds, lb, ub)
	}
	m.vars = append(m.vars, varInfo{name: name, vtype: vt, lb: lb, ub: ub})
	m.status = StatusLoaded
	return Var(len(m.vars) - 1), nil
}

func (m *simplexModel) checkVars(e LinExpr) error {
	for _, v := range e.Vars() {
		if int(v) < 0 || int(v) >= len(m.vars) {
			return fmt.Errorf("%w: v%d", ErrUnknownVar, int(v))
		}
	}
	return nil
}

func (m *simplexModel) AddConstr(name string, lhs LinExpr, rel Rel, rhs LinExpr) error {
	switch rel {
	case LE, GE, EQ:
	default:
		return fmt.Errorf("constraint %q: %w %q", name, ErrBadRelation, rel)
	}
	e := lhs.Sub(rhs)
	if err := m.checkVars(e); err != nil {
		return fmt.Errorf("constraint %q: %w", name, err)
	}
	m.constrs = append(m.constrs, constraint{name: name, expr: e, rel: rel})
	m.status = StatusLoaded
	return nil
}

func (m *simplexModel) SetObjective(e LinExpr, sense Sense) error {
	if err := m.checkVars(e); err != nil {
		return fmt.Errorf("objective: %w", err)
	}
	m.objective = e
	m.sense = sense
	m.status = StatusLoaded
	return nil
}

func (m *simplexModel) SetTimeLimit(d time.Duration) {
	m.timeLimit = d
}

func (m *simplexModel) Status() Status { return m.status }

func (m *simplexModel) SolCount() int { return m.solCount }

func (m *simplexModel) VarName(v Var) string {
	if int(v) < 0 || int(v) >= len(m.vars) {
		return fmt.Sprintf("v%d", int(v))
	}
	return m.vars[v].name
}

func (m *simplexModel) ObjVal() (float64, error) {
	if m.solCount == 0 {
		return math.NaN(), ErrNoSolution
	}
	return m.objective.Eval(m.valueOf), nil
}

func (m *simplexModel) Value(v Var) (float64, error) {
	if int(v) < 0 || int(v) >= len(m.vars) {
		return math.NaN(), fmt.Errorf("%w: v%d", ErrUnknownVar, int(v))
	}
	if m.solCount == 0 {
		return math.NaN(), ErrNoSolution
	}
	return m.best[v], nil
}

func (m *simplexModel) valueOf(v Var) float64 {
	return m.best[v]
}

// Optimize runs branch-and-bound over LP relaxations. Panics from the LP
// layer are converted into errors with status NUMERIC.
func (m *simplexModel) Optimize(ctx context.Context) (err error) {
	start := time.Now()
	m.best = nil
	m.solCount = 0
	m.nodes = 0

	defer func() {
		if r := recover(); r != nil {
			m.status = StatusNumeric
			err = fmt.Errorf("simplex: model %q: %v", m.name, r)
		}
		m.logger.Debug("optimize finished",
			"model", m.name,
			"status", m.status.String(),
			"nodes", m.nodes,
			"solutions", m.solCount,
			"duration", time.Since(start))
	}()

	var deadline time.Time
	if m.timeLimit > 0 {
		deadline = start.Add(m.timeLimit)
	}
	return m.branchAndBound(ctx, deadline)
}
