package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/llm"
	"github.com/roach88/nlopt/internal/store"
	"github.com/roach88/nlopt/internal/testutil"
)

const knapsackQuestion = "Pick items a, b, c (weights 2, 3, 4; values 3, 4, 5) to maximize value with capacity 6."

func TestSolveText(t *testing.T) {
	stdout, _, err := execute(t, scripted(t, testutil.Knapsack()), "solve", knapsackQuestion)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Instance:  cli")
	assert.Contains(t, stdout, "Problem:   knapsack")
	assert.Contains(t, stdout, "Status:    OPTIMAL (2)")
	assert.Contains(t, stdout, "Objective: 7")
	assert.NotContains(t, stdout, "Failed:")
}

func TestSolveJSON(t *testing.T) {
	stdout, _, err := execute(t, scripted(t, testutil.Knapsack()),
		"--format", "json", "solve", "--id", "q1", knapsackQuestion)
	require.NoError(t, err)

	var view struct {
		RunID      string   `json:"run_id"`
		InstanceID string   `json:"instance_id"`
		StatusName string   `json:"status_name"`
		Objective  *float64 `json:"objective"`
	}
	decodeData(t, stdout, &view)
	assert.Empty(t, view.RunID)
	assert.Equal(t, "q1", view.InstanceID)
	assert.Equal(t, "OPTIMAL", view.StatusName)
	require.NotNil(t, view.Objective)
	assert.InDelta(t, 7.0, *view.Objective, 1e-6)
}

func TestSolveFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(path, []byte("  "+knapsackQuestion+"\n"), 0o644))
	opts := scripted(t, testutil.Knapsack())

	_, _, err := execute(t, opts, "solve", "--file", path)
	require.NoError(t, err)

	reqs := opts.Oracle.(*llm.Scripted).Requests()
	require.Len(t, reqs, 1)
	last := reqs[0].Messages[len(reqs[0].Messages)-1]
	assert.Contains(t, last.Content, knapsackQuestion)
}

func TestSolveRecordsRun(t *testing.T) {
	db := dbPath(t)
	stdout, _, err := execute(t, scripted(t, testutil.Knapsack()), "solve", "--db", db, knapsackQuestion)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Run:       run-0001")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.ReadRun(context.Background(), "run-0001")
	require.NoError(t, err)
	assert.Equal(t, knapsackQuestion, run.Question)
	assert.Equal(t, "OPTIMAL", run.StatusName)
	assert.True(t, run.HasIRDict())
}

func TestSolveFailure(t *testing.T) {
	opts := &RootOptions{Oracle: llm.NewScripted("I cannot answer that.")}
	stdout, _, err := execute(t, opts, "solve", "anything")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "json_extract")
	assert.Contains(t, stdout, "Failed:    json_extract")
	assert.Contains(t, stdout, "Objective: -")
}

func TestSolveArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no question", []string{"solve"}, "no question given"},
		{"blank question", []string{"solve", "  "}, "no question given"},
		{"file and args", []string{"solve", "--file", "q.txt", "more"}, "not both"},
		{"missing file", []string{"solve", "--file", "/nonexistent/q.txt"}, "failed to read question"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, scripted(t), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadQuestionStdin(t *testing.T) {
	q, err := readQuestion("-", nil, strings.NewReader("maximize x\n"))
	require.NoError(t, err)
	assert.Equal(t, "maximize x", q)

	q, err = readQuestion("", []string{"maximize", "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "maximize x", q)
}
