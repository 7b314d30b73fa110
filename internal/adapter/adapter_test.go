package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/llm"
	"github.com/roach88/nlopt/internal/lower"
	"github.com/roach88/nlopt/internal/solver"
	"github.com/roach88/nlopt/internal/testutil"
	"github.com/roach88/nlopt/internal/verifier"
)

const knapsackQuestion = "Pick items a, b, c with weights 2, 3, 4 and values 3, 4, 5 to maximize value under capacity 6."

func knapsackReply(t *testing.T) string {
	t.Helper()
	raw, err := json.MarshalIndent(testutil.Knapsack(), "", "  ")
	require.NoError(t, err)
	return "Sure, here is the model.\n```json\n" + string(raw) + "\n```\n"
}

func TestTranslate(t *testing.T) {
	oracle := llm.NewScripted(knapsackReply(t))
	a := New(oracle, Options{Temperature: 0, MaxTokens: 512})

	m, err := a.Translate(context.Background(), knapsackQuestion)
	require.NoError(t, err)

	assert.Equal(t, "knapsack", m.Meta.ProblemID)
	assert.Equal(t, knapsackQuestion, m.Meta.Description)
	assert.Len(t, m.Params, 3)

	reqs := oracle.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, llm.RoleSystem, reqs[0].Messages[0].Role)
	assert.Contains(t, reqs[0].Messages[0].Content, "Reply with exactly one JSON object")
	assert.Contains(t, reqs[0].Messages[0].Content, "sum(")
	assert.Contains(t, reqs[0].Messages[1].Content, knapsackQuestion)
	assert.Equal(t, 512, reqs[0].MaxTokens)
}

func TestTranslateErrors(t *testing.T) {
	tests := []struct {
		name     string
		question string
		reply    llm.Reply
		kind     ErrorKind
	}{
		{"empty question", "   ", llm.Reply{Text: "{}"}, KindBuildPrompts},
		{"oracle failure", "q", llm.Reply{Err: errors.New("rate limited")}, KindLLMCall},
		{"no json", "q", llm.Reply{Text: "I cannot help with that."}, KindJSONExtract},
		{"schema violation", "q", llm.Reply{Text: `{"objective": {"expr": "x"}, "extra": true}`}, KindIRParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := llm.NewScripted()
			oracle.Push(tt.reply)
			_, err := New(oracle, Options{}).Translate(context.Background(), tt.question)
			require.Error(t, err)
			kind, ok := KindOf(err)
			require.True(t, ok, err.Error())
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestRebuildPrompt(t *testing.T) {
	oracle := llm.NewScripted(knapsackReply(t))
	a := New(oracle, Options{})
	tmpl := verifier.TemplateByName("knapsack")
	require.NotNil(t, tmpl)

	m, err := a.Rebuilder(knapsackQuestion).Rebuild(context.Background(), testutil.Direction(), tmpl)
	require.NoError(t, err)
	assert.Equal(t, "knapsack", m.Meta.ProblemID)

	system := oracle.Requests()[0].Messages[0].Content
	assert.True(t, strings.HasPrefix(system, SystemPrompt()))
	assert.Contains(t, system, "Problem type: knapsack")
	assert.Contains(t, system, tmpl.Instructions)
	assert.Contains(t, oracle.Requests()[0].Messages[1].Content, knapsackQuestion)

	_, err = RebuildPrompts(knapsackQuestion, nil)
	assert.True(t, IsKind(err, KindBuildPrompts))
}

func solvedKnapsack(t *testing.T) (*ir.ModelIR, *lower.Outcome) {
	t.Helper()
	m := testutil.Knapsack()
	out, err := lower.Solve(context.Background(), m, solver.NewSimplex(), 0)
	require.NoError(t, err)
	return m, out
}

func TestSelfCheck(t *testing.T) {
	corrected, err := json.Marshal(testutil.Knapsack())
	require.NoError(t, err)
	quoted, err := json.Marshal("```json\n" + string(corrected) + "\n```")
	require.NoError(t, err)

	tests := []struct {
		name       string
		reply      string
		confidence float64
		corrected  bool
	}{
		{"no correction", `{"confidence_score": 0.9, "corrected_model": null}`, 0.9, false},
		{"missing correction", `{"confidence_score": 0.75}`, 0.75, false},
		{"empty string", `{"confidence_score": 0.2, "corrected_model": ""}`, 0.2, false},
		{"object", `{"confidence_score": 0.3, "corrected_model": ` + string(corrected) + `}`, 0.3, true},
		{"string", `{"confidence_score": 0.4, "corrected_model": ` + string(quoted) + `}`, 0.4, true},
		{"clamped", `{"confidence_score": 1.7}`, 1, false},
	}

	m, out := solvedKnapsack(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := llm.NewScripted("```json\n" + tt.reply + "\n```")
			sc, err := New(oracle, Options{}).SelfCheck(context.Background(), knapsackQuestion, m, out)
			require.NoError(t, err)
			assert.InDelta(t, tt.confidence, sc.Confidence, 1e-12)
			if tt.corrected {
				require.NotNil(t, sc.CorrectedModel)
				assert.Equal(t, knapsackQuestion, sc.CorrectedModel.Meta.Description)
			} else {
				assert.Nil(t, sc.CorrectedModel)
			}

			user := oracle.Requests()[0].Messages[1].Content
			assert.Contains(t, user, "Solver result: status OPTIMAL, objective")
			assert.Contains(t, user, `"problem_id": "knapsack"`)
		})
	}
}

func TestSelfCheckErrors(t *testing.T) {
	m, out := solvedKnapsack(t)
	tests := []struct {
		name  string
		reply string
		kind  ErrorKind
	}{
		{"no json", "looks fine to me", KindJSONExtract},
		{"no confidence", `{"corrected_model": null}`, KindSelfCheck},
		{"array model", `{"confidence_score": 0.5, "corrected_model": [1]}`, KindSelfCheck},
		{"bad model", `{"confidence_score": 0.5, "corrected_model": {"vars": []}}`, KindIRParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(llm.NewScripted(tt.reply), Options{}).SelfCheck(context.Background(), knapsackQuestion, m, out)
			require.Error(t, err)
			assert.True(t, IsKind(err, tt.kind), err.Error())
		})
	}
}
