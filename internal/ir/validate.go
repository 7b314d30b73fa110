package ir

import (
	"fmt"
	"strings"
)

// Validation error codes (E200-E299).
//
// E201-E209 are structural: a model carrying one cannot be repaired by the
// verifier and is rejected at parse time. E210 and above describe token and
// naming problems the verifier normalizes.
const (
	// Structural errors (E201-E209)
	ErrEmptyName        = "E201" // set/param/var name missing
	ErrDuplicateName    = "E202" // name defined twice across sets, params and vars
	ErrTooManyIndices   = "E203" // param or var indexed by more than two sets
	ErrUnknownIndexSet  = "E204" // index refers to an undefined set
	ErrMissingObjective = "E205" // objective expression empty

	// Repairable errors (E210-E219)
	ErrDuplicateConstraint = "E210" // constraint name used twice
	ErrInvalidVarType      = "E211" // vartype not continuous/integer/binary
	ErrInvalidObjSense     = "E212" // sense not min/max
	ErrInvalidConSense     = "E213" // constraint sense not <=, >=, ==
	ErrBoundsInverted      = "E214" // lb greater than ub
	ErrEmptyExpression     = "E215" // constraint side empty
	ErrUnnamedConstraint   = "E216" // constraint name missing
)

// ValidationError represents an IR validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Structural reports whether the error makes the model unusable.
func (e ValidationError) Structural() bool {
	return e.Code < ErrDuplicateConstraint
}

// Validate checks the model's structure.
// Returns all errors found (does not fail-fast).
func Validate(m *ModelIR) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if m.Meta.Sense != "" && !m.Meta.Sense.Valid() {
		add("meta.sense", ErrInvalidObjSense, "sense %q is not min or max", m.Meta.Sense)
	}

	names := make(map[string]string)
	claim := func(field, kind, name string) {
		if strings.TrimSpace(name) == "" {
			add(field, ErrEmptyName, "%s name is required", kind)
			return
		}
		if prev, ok := names[name]; ok {
			add(field, ErrDuplicateName, "%s %q already defined as %s", kind, name, prev)
			return
		}
		names[name] = kind
	}

	sets := make(map[string]bool, len(m.Sets))
	for i, s := range m.Sets {
		claim(fmt.Sprintf("sets[%d].name", i), "set", s.Name)
		sets[s.Name] = true
	}

	checkIndices := func(field, kind, name string, indices []string) {
		if len(indices) > 2 {
			add(field, ErrTooManyIndices, "%s %q has %d indices; at most 2 are supported", kind, name, len(indices))
		}
		for j, idx := range indices {
			if !sets[idx] {
				add(fmt.Sprintf("%s[%d]", field, j), ErrUnknownIndexSet, "%s %q is indexed by unknown set %q", kind, name, idx)
			}
		}
	}

	for i, p := range m.Params {
		claim(fmt.Sprintf("params[%d].name", i), "param", p.Name)
		checkIndices(fmt.Sprintf("params[%d].indices", i), "param", p.Name, p.Indices)
	}

	for i, v := range m.Vars {
		field := fmt.Sprintf("vars[%d]", i)
		claim(field+".name", "var", v.Name)
		checkIndices(field+".indices", "var", v.Name, v.Indices)
		if !v.VarType.Valid() {
			add(field+".vartype", ErrInvalidVarType, "vartype %q is not continuous, integer or binary", v.VarType)
		}
		if v.UB != nil && v.LB > *v.UB {
			add(field+".lb", ErrBoundsInverted, "lb %g exceeds ub %g", v.LB, *v.UB)
		}
	}

	if strings.TrimSpace(m.Objective.Expr) == "" {
		add("objective.expr", ErrMissingObjective, "objective expression is required")
	}
	if m.Objective.Sense != "" && !m.Objective.Sense.Valid() {
		add("objective.sense", ErrInvalidObjSense, "sense %q is not min or max", m.Objective.Sense)
	}

	seen := make(map[string]bool, len(m.Constraints))
	for i, c := range m.Constraints {
		field := fmt.Sprintf("constraints[%d]", i)
		if strings.TrimSpace(c.Name) == "" {
			add(field+".name", ErrUnnamedConstraint, "constraint name is required")
		} else if seen[c.Name] {
			add(field+".name", ErrDuplicateConstraint, "duplicate constraint name %q", c.Name)
		}
		seen[c.Name] = true
		if !c.Sense.Valid() {
			add(field+".sense", ErrInvalidConSense, "sense %q is not <=, >= or ==", c.Sense)
		}
		if strings.TrimSpace(c.ExprLHS) == "" || strings.TrimSpace(c.ExprRHS) == "" {
			add(field, ErrEmptyExpression, "constraint %q has an empty side", c.Name)
		}
	}

	return errs
}

// StructuralErrors filters errs down to the structural ones.
func StructuralErrors(errs []ValidationError) []ValidationError {
	var out []ValidationError
	for _, e := range errs {
		if e.Structural() {
			out = append(out, e)
		}
	}
	return out
}
