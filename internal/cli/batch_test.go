package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/llm"
	"github.com/roach88/nlopt/internal/metrics"
	"github.com/roach88/nlopt/internal/pipeline"
	"github.com/roach88/nlopt/internal/store"
	"github.com/roach88/nlopt/internal/testutil"
)

func TestReadInstances(t *testing.T) {
	data := []byte(`{"id": "a", "question": "q1"}

{"question": "q2"}
`)
	got, err := readInstances(data)
	require.NoError(t, err)
	assert.Equal(t, []pipeline.Instance{
		{ID: "a", Question: "q1"},
		{ID: "3", Question: "q2"},
	}, got)
}

func TestReadInstancesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad json", `{"id": "a"`, "line 1"},
		{"unknown field", `{"id": "a", "question": "q", "extra": 1}`, "unknown field"},
		{"missing question", "{\"id\": \"a\", \"question\": \"q\"}\n{\"id\": \"b\"}", "line 2: question is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readInstances([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadInstancesEmpty(t *testing.T) {
	got, err := readInstances(nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func writeInstances(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestBatchWritesResultsInOrder(t *testing.T) {
	in := writeInstances(t,
		`{"id": "k1", "question": "first"}`,
		`{"id": "k2", "question": "second"}`,
		`{"id": "bad", "question": "third"}`,
	)
	oracle := llm.NewScripted()
	knapsack := "```json\n" + string(modelJSON(t, testutil.Knapsack())) + "\n```"
	oracle.Push(llm.Reply{Text: knapsack}, llm.Reply{Text: knapsack}, llm.Reply{Text: "no json here"})

	stdout, stderr, err := execute(t, &RootOptions{Oracle: oracle}, "batch", "--concurrency", "1", in)
	require.NoError(t, err)

	var ids []string
	var solved []bool
	sc := bufio.NewScanner(strings.NewReader(stdout))
	for sc.Scan() {
		var res struct {
			InstanceID string   `json:"instance_id"`
			Objective  *float64 `json:"objective"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &res))
		ids = append(ids, res.InstanceID)
		solved = append(solved, res.Objective != nil)
	}
	assert.Equal(t, []string{"k1", "k2", "bad"}, ids)
	assert.Equal(t, []bool{true, true, false}, solved)

	assert.Contains(t, stderr, "Solved 2 of 3 (1 failed)")
	assert.Contains(t, stderr, "json_extract")
}

func TestBatchOutputFileAndStore(t *testing.T) {
	in := writeInstances(t, `{"id": "k1", "question": "first"}`, `{"id": "k2", "question": "second"}`)
	out := filepath.Join(t.TempDir(), "out.jsonl")
	db := dbPath(t)

	stdout, _, err := execute(t, scripted(t, testutil.Knapsack(), testutil.Knapsack()),
		"--format", "json", "batch", "--concurrency", "1", "--output", out, "--db", db, in)
	require.NoError(t, err)

	var summary BatchSummary
	decodeData(t, stdout, &summary)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Solved)
	assert.Equal(t, 2, summary.Recorded)
	assert.Empty(t, summary.ByStage)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "k1", runs[0].InstanceID)
	assert.Equal(t, "first", runs[0].Question)
	assert.Equal(t, "k2", runs[1].InstanceID)
}

func TestBatchMissingFile(t *testing.T) {
	_, _, err := execute(t, scripted(t), "batch", "/nonexistent/in.jsonl")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBatchBadMetricsAddr(t *testing.T) {
	in := writeInstances(t, `{"id": "k1", "question": "first"}`)
	_, _, err := execute(t, scripted(t, testutil.Knapsack()), "batch", "--metrics-addr", "not-an-address", in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to serve metrics")
}

func TestServeMetrics(t *testing.T) {
	rec := metrics.New()
	rec.Run("")
	stop, err := serveMetrics(context.Background(), "127.0.0.1:0", rec, testLogger())
	require.NoError(t, err)
	stop()
}

func TestSummarize(t *testing.T) {
	obj := 1.0
	s := summarize([]*pipeline.Result{
		{Objective: &obj},
		{FailureStage: pipeline.StageSolverBuild},
		{FailureStage: pipeline.StageSolverBuild},
		{FailureStage: pipeline.StageLLMCall},
	})
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Solved)
	assert.Equal(t, 3, s.Failed)
	assert.Equal(t, map[string]int{"solver_build": 2, "llm_call": 1}, s.ByStage)
}
