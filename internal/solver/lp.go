package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	// simplexTol is the reduced-cost tolerance passed to lp.Simplex.
	simplexTol = 1e-10
	// feasTol absorbs round-off in bound and row checks.
	feasTol = 1e-9
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
)

type relaxation struct {
	status lpStatus
	x      []float64
	// minObj is the objective in minimization form (negated for Maximize).
	minObj float64
}

// column maps one standard-form column back to a model variable:
// x[v] gets sign*y added to its offset.
type column struct {
	v    int
	sign float64
}

// solveRelaxation solves the LP relaxation of the model under the given
// bounds. Integrality is ignored.
//
// The model is rewritten into lp.Simplex standard form
//
//	minimize c'y  s.t.  [G | I] [y; s] = h,  y, s >= 0
//
// by shifting each variable onto a non-negative column (x = lb + y,
// x = ub - y, or x = y+ - y- when free), turning every constraint and
// finite upper bound into a <= row and appending one slack per row. Slack
// columns come last and make the matrix full row rank.
func (m *simplexModel) solveRelaxation(lb, ub []float64) (relaxation, error) {
	n := len(m.vars)
	offset := make([]float64, n)
	colsOf := make([][]int, n)
	var cols []column

	type boundRow struct {
		col int
		cap float64
	}
	var boundRows []boundRow

	for j := 0; j < n; j++ {
		l, u := lb[j], ub[j]
		if l > u+feasTol {
			return relaxation{status: lpInfeasible}, nil
		}
		switch {
		case !math.IsInf(l, 0) && !math.IsInf(u, 0) && u-l <= feasTol:
			offset[j] = l
		case !math.IsInf(l, 0):
			offset[j] = l
			colsOf[j] = append(colsOf[j], len(cols))
			cols = append(cols, column{v: j, sign: 1})
			if !math.IsInf(u, 0) {
				boundRows = append(boundRows, boundRow{col: len(cols) - 1, cap: u - l})
			}
		case !math.IsInf(u, 0):
			offset[j] = u
			colsOf[j] = append(colsOf[j], len(cols))
			cols = append(cols, column{v: j, sign: -1})
		default:
			colsOf[j] = append(colsOf[j], len(cols), len(cols)+1)
			cols = append(cols, column{v: j, sign: 1}, column{v: j, sign: -1})
		}
	}

	objSign := 1.0
	if m.sense == Maximize {
		objSign = -1
	}
	cost := make([]float64, len(cols))
	for k, c := range cols {
		cost[k] = objSign * m.objective.Coef(Var(c.v)) * c.sign
	}

	// Rows as sparse maps over columns, all in g.y <= h form.
	var rows []map[int]float64
	var rhs []float64
	addRow := func(e LinExpr, flip float64) {
		g := make(map[int]float64)
		h := -e.Constant()
		for _, v := range e.Vars() {
			a := e.Coef(v)
			h -= a * offset[v]
			for _, k := range colsOf[v] {
				g[k] += a * cols[k].sign
			}
		}
		for k, a := range g {
			g[k] = flip * a
		}
		rows = append(rows, g)
		rhs = append(rhs, flip*h)
	}
	for _, c := range m.constrs {
		switch c.rel {
		case LE:
			addRow(c.expr, 1)
		case GE:
			addRow(c.expr, -1)
		case EQ:
			addRow(c.expr, 1)
			addRow(c.expr, -1)
		}
	}
	for _, br := range boundRows {
		rows = append(rows, map[int]float64{br.col: 1})
		rhs = append(rhs, br.cap)
	}

	// Drop rows without coefficients after checking them as constants.
	keptRows := rows[:0]
	keptRHS := rhs[:0]
	for i, g := range rows {
		nonzero := false
		for _, a := range g {
			if a != 0 {
				nonzero = true
				break
			}
		}
		if !nonzero {
			if rhs[i] < -feasTol {
				return relaxation{status: lpInfeasible}, nil
			}
			continue
		}
		keptRows = append(keptRows, g)
		keptRHS = append(keptRHS, rhs[i])
	}
	rows, rhs = keptRows, keptRHS

	// Columns no row touches are fixed at zero, or make the LP unbounded.
	used := make([]bool, len(cols))
	for _, g := range rows {
		for k, a := range g {
			if a != 0 {
				used[k] = true
			}
		}
	}
	live := make([]int, 0, len(cols))
	position := make(map[int]int, len(cols))
	for k := range cols {
		if used[k] {
			position[k] = len(live)
			live = append(live, k)
			continue
		}
		if cost[k] < 0 {
			return relaxation{status: lpUnbounded}, nil
		}
	}

	y := make([]float64, len(cols))
	if len(rows) > 0 {
		mRows, nCols := len(rows), len(live)+len(rows)
		a := mat.NewDense(mRows, nCols, nil)
		c := make([]float64, nCols)
		for i, g := range rows {
			for k, coef := range g {
				if coef != 0 {
					a.Set(i, position[k], coef)
				}
			}
			a.Set(i, len(live)+i, 1)
		}
		for p, k := range live {
			c[p] = cost[k]
		}

		var basic []int
		feasibleSlacks := true
		for _, h := range rhs {
			if h < 0 {
				feasibleSlacks = false
				break
			}
		}
		if feasibleSlacks {
			basic = make([]int, mRows)
			for i := range basic {
				basic[i] = len(live) + i
			}
		}

		_, sol, err := lp.Simplex(c, a, rhs, simplexTol, basic)
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return relaxation{status: lpInfeasible}, nil
		case errors.Is(err, lp.ErrUnbounded):
			return relaxation{status: lpUnbounded}, nil
		case err != nil:
			return relaxation{}, fmt.Errorf("lp relaxation: %w", err)
		}
		for p, k := range live {
			y[k] = sol[p]
		}
	}

	x := make([]float64, n)
	copy(x, offset)
	for k, col := range cols {
		x[col.v] += col.sign * y[k]
	}
	obj := m.objective.Eval(func(v Var) float64 { return x[v] })
	return relaxation{status: lpOptimal, x: x, minObj: objSign * obj}, nil
}
