// Package expr parses and evaluates the expression language used by IR
// objectives and constraints.
//
// The language is a small Python-flavoured subset: arithmetic, comparisons,
// boolean operators, subscripts, list and tuple literals, calls to a fixed
// set of helpers (quicksum, sum, range, len, min, max, abs, enumerate) and
// generator comprehensions such as
//
//	sum(cost[i][j] * x[i][j] for i in I for j in J if i != j)
//
// Expressions are parsed into a typed AST and evaluated by a small
// interpreter against an explicit namespace. There is no attribute access,
// no import and no global scope beyond the namespace and the helpers, so
// model text from an LLM cannot reach anything else in the process.
//
// Evaluation produces numbers, strings, booleans, lists, tuples, maps and
// solver.LinExpr values. Multiplying two non-constant linear expressions is
// an error of kind KindNonlinear.
//
// The analysis helpers (FreeNames, Subscripts, GeneratorBindings,
// Substitute, Rewrite) and Format support the verifier's rewrites.
package expr
