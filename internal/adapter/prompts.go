package adapter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/nlopt/internal/expr"
	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/lower"
	"github.com/roach88/nlopt/internal/llm"
	"github.com/roach88/nlopt/internal/verifier"
)

// Prompts is a system and user prompt pair.
type Prompts struct {
	System string `json:"system"`
	User   string `json:"user"`
}

// Messages renders the prompts as chat messages.
func (p Prompts) Messages() []llm.Message {
	return []llm.Message{llm.System(p.System), llm.User(p.User)}
}

const irInstructions = `You translate optimization problems written in natural language into a JSON model.

Reply with exactly one JSON object and nothing else. The object has these keys:

{
  "meta": {"problem_id": string, "sense": "min" | "max"},
  "sets": [{"name": string, "elements": [string, ...], "description": string}],
  "params": [{"name": string, "indices": [set names], "values": ..., "description": string}],
  "vars": [{"name": string, "indices": [set names], "vartype": "continuous" | "integer" | "binary",
            "lb": number, "ub": number | null, "description": string}],
  "objective": {"name": string, "sense": "min" | "max", "expr": string},
  "constraints": [{"name": string, "expr_lhs": string, "sense": "<=" | ">=" | "==", "expr_rhs": string,
                   "description": string}]
}

Rules:
- No other top-level keys are allowed.
- Set elements are strings. Give every set, param and var a distinct name.
- Params and vars have at most two indices.
- Param values: a number for no indices; {"elem": number} for one index;
  {"row": {"col": number}} for two indices. Include every entry, use 0 for missing ones.
- Constraint names are unique. Every constraint is a single scalar relation; write one
  constraint per element instead of leaving an index free.
- meta.sense and objective.sense agree.

Expressions are written in a small Python-like language:
- Numbers, 'strings', names of sets, params and vars, + - * / ** and parentheses.
- Indexing: x[i], cost[i][j] or cost[i, j]; literal keys are quoted: x['a'].
- Generators: sum(expr for i in I), sum(expr for i in I for j in J if i != j).
- Helpers: %s.
- Expressions must be linear in the variables.`

const selfCheckInstructions = `You review a mathematical model built for an optimization question.

You get the question, the model as JSON and the solver result. Judge whether the model
faithfully represents the question. Reply with exactly one JSON object:

{"confidence_score": number between 0 and 1, "corrected_model": null | <model JSON>}

Set corrected_model only when the model is wrong; it must follow the same JSON format as
the model you were given.`

// SystemPrompt returns the NL-to-IR instructions.
func SystemPrompt() string {
	return fmt.Sprintf(irInstructions, strings.Join(expr.Helpers(), ", "))
}

// BuildPrompts builds the prompts for one question.
func BuildPrompts(question string) (Prompts, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return Prompts{}, errorf(KindBuildPrompts, "question is empty")
	}
	return Prompts{
		System: SystemPrompt(),
		User:   "Problem:\n" + q,
	}, nil
}

// RebuildPrompts builds the prompts for a template rescue: the base
// instructions followed by the template's type-specific block.
func RebuildPrompts(question string, t *verifier.Template) (Prompts, error) {
	p, err := BuildPrompts(question)
	if err != nil {
		return Prompts{}, err
	}
	if t == nil {
		return Prompts{}, errorf(KindBuildPrompts, "no template")
	}
	p.System += "\n\nProblem type: " + t.Name + "\n" + t.Instructions
	return p, nil
}

// SelfCheckPrompts builds the estimator prompts for a solved model.
func SelfCheckPrompts(question string, m *ir.ModelIR, out *lower.Outcome) (Prompts, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return Prompts{}, errorf(KindBuildPrompts, "question is empty")
	}
	model, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Prompts{}, errorf(KindBuildPrompts, "encode model: %v", err)
	}
	result := "not solved"
	if out != nil {
		result = "status " + out.Status.String()
		if out.Objective != nil {
			result += ", objective " + ir.FormatNumber(*out.Objective)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\nModel:\n%s\n\nSolver result: %s\n", q, model, result)
	return Prompts{System: selfCheckInstructions, User: b.String()}, nil
}
