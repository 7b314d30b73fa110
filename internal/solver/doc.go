// Package solver defines the MILP back-end contract lowering targets and a
// reference back-end built on gonum's simplex.
//
// A Backend creates named Models. A Model accepts variables, linear
// constraints and a linear objective, optimizes under a time limit and
// reports a Status using the code numbering common to commercial MILP
// solvers so traces stay comparable across back-ends.
//
// The reference Simplex back-end solves LP relaxations with
// gonum.org/v1/gonum/optimize/convex/lp and branches depth-first on
// fractional integer variables. It is intended for small models, tests and
// offline replay rather than production-scale MILPs.
package solver
