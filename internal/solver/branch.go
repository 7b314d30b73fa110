package solver

import (
	"context"
	"math"
	"slices"
	"time"
)

// intTol is the distance from an integer below which a value counts as
// integral.
const intTol = 1e-6

type bbNode struct {
	lb, ub []float64
}

// branchAndBound explores the tree depth-first, taking the branch nearest
// the fractional value first. It sets m.status and, when a solution is
// found, m.best and m.solCount.
func (m *simplexModel) branchAndBound(ctx context.Context, deadline time.Time) error {
	n := len(m.vars)
	root := bbNode{lb: make([]float64, n), ub: make([]float64, n)}
	hasInt := false
	for j, v := range m.vars {
		root.lb[j], root.ub[j] = v.lb, v.ub
		if v.vtype != Continuous {
			hasInt = true
			root.lb[j] = math.Ceil(v.lb - intTol)
			root.ub[j] = math.Floor(v.ub + intTol)
		}
	}

	incumbent := math.Inf(1)
	stack := []bbNode{root}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			m.status = StatusInterrupted
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			m.status = StatusTimeLimit
			return nil
		}
		if m.nodes >= m.nodeLimit {
			if m.solCount > 0 {
				m.status = StatusSuboptimal
			} else {
				m.status = StatusNodeLimit
			}
			return nil
		}

		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		m.nodes++

		rel, err := m.solveRelaxation(node.lb, node.ub)
		if err != nil {
			m.status = StatusNumeric
			return err
		}
		switch rel.status {
		case lpInfeasible:
			continue
		case lpUnbounded:
			if hasInt {
				m.status = StatusInfOrUnbd
			} else {
				m.status = StatusUnbounded
			}
			return nil
		}
		if m.solCount > 0 && rel.minObj >= incumbent-feasTol*math.Max(1, math.Abs(incumbent)) {
			continue
		}

		j, frac := m.mostFractional(rel.x)
		if j < 0 {
			m.best = m.roundIntegers(rel.x)
			m.solCount++
			incumbent = rel.minObj
			continue
		}

		v := rel.x[j]
		down := bbNode{lb: slices.Clone(node.lb), ub: slices.Clone(node.ub)}
		down.ub[j] = math.Floor(v)
		up := bbNode{lb: slices.Clone(node.lb), ub: slices.Clone(node.ub)}
		up.lb[j] = math.Ceil(v)
		// The last pushed node is explored first.
		if frac >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if m.solCount > 0 {
		m.status = StatusOptimal
	} else {
		m.status = StatusInfeasible
	}
	return nil
}

// mostFractional returns the integer variable farthest from integrality and
// its fractional part, or -1 when the point is integral.
func (m *simplexModel) mostFractional(x []float64) (int, float64) {
	best, bestDist, bestFrac := -1, intTol, 0.0
	for j, v := range m.vars {
		if v.vtype == Continuous {
			continue
		}
		frac := x[j] - math.Floor(x[j])
		dist := math.Min(frac, 1-frac)
		if dist > bestDist {
			best, bestDist, bestFrac = j, dist, frac
		}
	}
	return best, bestFrac
}

func (m *simplexModel) roundIntegers(x []float64) []float64 {
	out := slices.Clone(x)
	for j, v := range m.vars {
		if v.vtype != Continuous {
			out[j] = math.Round(out[j])
		}
	}
	return out
}
