// Package verifier checks and repairs IR before it reaches the solver.
//
// Rules are grouped in three layers that run in order:
//
//   - L1 compile safety: string keys, nested 2D params, filled diagonals,
//     unrolled free indices, sum call typos, unique constraint names
//   - L2 semantic sanity: integrality cues, constraint direction cues,
//     sense and bound normalization
//   - L3 template rescue: when the model strongly resembles a known problem
//     type and does not solve, ask for a rebuild and accept it only if it
//     solves
//
// Every rule is a detector producing an issue plus opaque data, and an
// applier that mutates the IR using only that data. With repairs disabled
// the runner works on a deep copy and returns the caller's IR untouched,
// so the same rules serve as a pure linter.
//
// A rule that errors or panics is reported as a verifier_exception issue
// and does not stop later rules.
package verifier
