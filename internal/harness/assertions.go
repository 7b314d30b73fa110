package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/pipeline"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Expectation name for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Repairs  []string // Verifier repairs of the run, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Repairs) > 0 {
		fmt.Fprintf(&buf, "\nRepairs:\n")
		for i, r := range e.Repairs {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, r)
		}
	}

	return buf.String()
}

// EvaluateExpect checks every expectation against res and returns one
// message per failure.
func EvaluateExpect(res *pipeline.Result, e Expect) []string {
	checks := []func(*pipeline.Result, Expect) error{
		assertStatus,
		assertObjective,
		assertFailureStage,
		assertConstraints,
		assertSenses,
		assertParams,
		assertRules,
		assertNoRepairs,
	}

	var errs []string
	for _, check := range checks {
		if err := check(res, e); err != nil {
			if ae, ok := err.(*AssertionError); ok && res.VerifierReport != nil {
				ae.Repairs = res.VerifierReport.RepairSummaries()
			}
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertStatus(res *pipeline.Result, e Expect) error {
	if e.Status == "" || res.StatusName == e.Status {
		return nil
	}
	return &AssertionError{
		Type:     "status",
		Expected: e.Status,
		Actual:   describeOutcome(res),
	}
}

func assertObjective(res *pipeline.Result, e Expect) error {
	if e.Objective == nil {
		return nil
	}
	if res.Objective == nil {
		return &AssertionError{
			Type:     "objective",
			Expected: fmt.Sprintf("%g", *e.Objective),
			Actual:   "no objective: " + describeOutcome(res),
		}
	}
	tol := e.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	if math.Abs(*res.Objective-*e.Objective) > tol {
		return &AssertionError{
			Type:     "objective",
			Expected: fmt.Sprintf("%g (tolerance %g)", *e.Objective, tol),
			Actual:   fmt.Sprintf("%g", *res.Objective),
		}
	}
	return nil
}

func assertFailureStage(res *pipeline.Result, e Expect) error {
	if e.FailureStage == "" {
		return nil
	}
	if string(res.FailureStage) != e.FailureStage {
		return &AssertionError{
			Type:     "failure_stage",
			Expected: e.FailureStage,
			Actual:   describeOutcome(res),
		}
	}
	return nil
}

func assertConstraints(res *pipeline.Result, e Expect) error {
	if e.Constraints == nil {
		return nil
	}
	var names []string
	if res.IR != nil {
		for _, c := range res.IR.Constraints {
			names = append(names, c.Name)
		}
	}
	if !slices.Equal(names, e.Constraints) {
		return &AssertionError{
			Type:     "constraints",
			Expected: fmt.Sprintf("%v", e.Constraints),
			Actual:   fmt.Sprintf("%v", names),
		}
	}
	return nil
}

func assertSenses(res *pipeline.Result, e Expect) error {
	names := make([]string, 0, len(e.Senses))
	for name := range e.Senses {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		want := e.Senses[name]
		var c *ir.ConstraintDef
		if res.IR != nil {
			c = res.IR.Constraint(name)
		}
		if c == nil {
			return &AssertionError{
				Type:     "senses",
				Expected: fmt.Sprintf("constraint %s with sense %s", name, want),
				Actual:   "constraint not found",
			}
		}
		if string(c.Sense) != want {
			return &AssertionError{
				Type:     "senses",
				Expected: fmt.Sprintf("%s %s", name, want),
				Actual:   fmt.Sprintf("%s %s", name, c.Sense),
			}
		}
	}
	return nil
}

func assertParams(res *pipeline.Result, e Expect) error {
	for _, want := range e.Params {
		label := want.Name
		for _, k := range want.Key {
			label += "[" + k + "]"
		}
		got, err := paramEntry(res.IR, want)
		if err != nil {
			return &AssertionError{
				Type:     "params",
				Expected: fmt.Sprintf("%s = %g", label, want.Value),
				Actual:   err.Error(),
			}
		}
		if got != want.Value {
			return &AssertionError{
				Type:     "params",
				Expected: fmt.Sprintf("%s = %g", label, want.Value),
				Actual:   fmt.Sprintf("%s = %g", label, got),
			}
		}
	}
	return nil
}

// paramEntry walks the nested dicts of a param down its keys.
func paramEntry(m *ir.ModelIR, want ParamEntry) (float64, error) {
	if m == nil {
		return 0, fmt.Errorf("no IR")
	}
	p := m.Param(want.Name)
	if p == nil {
		return 0, fmt.Errorf("param %s not found", want.Name)
	}
	v := p.Values
	for _, k := range want.Key {
		d, ok := v.(*ir.Dict)
		if !ok {
			return 0, fmt.Errorf("param %s: %T is not a dict at key %s", want.Name, v, k)
		}
		if v, ok = d.Get(k); !ok {
			return 0, fmt.Errorf("param %s: key %s missing", want.Name, k)
		}
	}
	n, ok := v.(ir.Number)
	if !ok {
		return 0, fmt.Errorf("param %s: %T is not a number", want.Name, v)
	}
	return float64(n), nil
}

func assertRules(res *pipeline.Result, e Expect) error {
	if len(e.Repairs) == 0 && len(e.Issues) == 0 {
		return nil
	}
	report := res.VerifierReport
	if report == nil {
		return &AssertionError{
			Type:     "rules",
			Expected: "a verifier report",
			Actual:   "verifier did not run: " + describeOutcome(res),
		}
	}

	var missing []string
	for _, rule := range e.Repairs {
		if len(report.RepairsBy(rule)) == 0 {
			missing = append(missing, "repair "+rule)
		}
	}
	for _, rule := range e.Issues {
		if len(report.IssuesBy(rule)) == 0 {
			missing = append(missing, "issue "+rule)
		}
	}
	if len(missing) > 0 {
		return &AssertionError{
			Type:     "rules",
			Expected: strings.Join(missing, ", "),
			Actual:   fmt.Sprintf("issues %v", report.IssueSummaries()),
		}
	}
	return nil
}

func assertNoRepairs(res *pipeline.Result, e Expect) error {
	if !e.NoRepairs || res.VerifierReport == nil || len(res.VerifierReport.Repairs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     "no_repairs",
		Expected: "untouched IR",
		Actual:   fmt.Sprintf("%d repair(s)", len(res.VerifierReport.Repairs)),
	}
}

func describeOutcome(res *pipeline.Result) string {
	if res.FailureStage != "" {
		return fmt.Sprintf("%s (failed at %s: %s)", res.StatusName, res.FailureStage, res.Error)
	}
	return res.StatusName
}
