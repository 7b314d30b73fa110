package verifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/nlopt/internal/ir"
)

// exprRef addresses one expression string of a model.
type exprRef struct {
	Path string
	Text string
}

// exprRefs lists the objective and every constraint side in model order.
func exprRefs(m *ir.ModelIR) []exprRef {
	refs := []exprRef{{Path: "objective.expr", Text: m.Objective.Expr}}
	for i, c := range m.Constraints {
		refs = append(refs,
			exprRef{Path: fmt.Sprintf("constraints[%d].expr_lhs", i), Text: c.ExprLHS},
			exprRef{Path: fmt.Sprintf("constraints[%d].expr_rhs", i), Text: c.ExprRHS},
		)
	}
	return refs
}

// setExpr writes text to the expression at path.
func setExpr(m *ir.ModelIR, path, text string) error {
	if path == "objective.expr" {
		m.Objective.Expr = text
		return nil
	}
	var i int
	var side string
	if _, err := fmt.Sscanf(path, "constraints[%d].%s", &i, &side); err != nil {
		return fmt.Errorf("bad expression path %q: %w", path, err)
	}
	if i < 0 || i >= len(m.Constraints) {
		return fmt.Errorf("expression path %q out of range", path)
	}
	switch side {
	case "expr_lhs":
		m.Constraints[i].ExprLHS = text
	case "expr_rhs":
		m.Constraints[i].ExprRHS = text
	default:
		return fmt.Errorf("bad expression path %q", path)
	}
	return nil
}

// exprEdit replaces the expression at Path with Text.
type exprEdit struct {
	Path string `json:"path"`
	From string `json:"from"`
	Text string `json:"to"`
}

func applyEdits(m *ir.ModelIR, edits []exprEdit) error {
	for _, e := range edits {
		if err := setExpr(m, e.Path, e.Text); err != nil {
			return err
		}
	}
	return nil
}

func editEvidence(edits []exprEdit) []map[string]string {
	out := make([]map[string]string, len(edits))
	for i, e := range edits {
		out[i] = map[string]string{"path": e.Path, "from": e.From, "to": e.Text}
	}
	return out
}

var integerText = regexp.MustCompile(`^-?[0-9]+$`)

// digitSets returns the sets whose elements all read as integers once
// stringified.
func digitSets(m *ir.ModelIR) map[string]bool {
	out := map[string]bool{}
	for _, s := range m.Sets {
		if len(s.Elements) == 0 {
			continue
		}
		all := true
		for _, e := range s.ElementStrings() {
			if !integerText.MatchString(e) {
				all = false
				break
			}
		}
		if all {
			out[s.Name] = true
		}
	}
	return out
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// sanitize makes an element usable inside a constraint name.
func sanitize(s string) string {
	s = unsafeNameChars.ReplaceAllString(s, "_")
	if s == "" {
		return "_"
	}
	return s
}

// spaced lowercases s and reads underscores and dashes as spaces, so
// "min_production" matches cues written with spaces.
func spaced(s string) string {
	return strings.ToLower(strings.NewReplacer("_", " ", "-", " ").Replace(s))
}

func setSize(m *ir.ModelIR, name string) int {
	if s := m.Set(name); s != nil {
		return len(s.Elements)
	}
	return -1
}
