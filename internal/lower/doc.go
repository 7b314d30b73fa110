// Package lower instantiates solver models from verified IR.
//
// Build evaluates every expression of a ModelIR in a single namespace made
// of the model's sets, params and vars plus the expression helpers, and
// nothing else. Evaluation goes through the expr interpreter, so there is
// no host-language code execution at any point.
//
// Naming:
//   - 1D variables are named v[i]
//   - 2D variables are named v[i,j]
//
// Every failure is a *BuildError naming the component that failed
// ("param:cost", "var:x", "objective", "constraint:cap").
package lower
