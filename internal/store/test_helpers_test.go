package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/nlopt/internal/pipeline"
	"github.com/roach88/nlopt/internal/solver"
	"github.com/roach88/nlopt/internal/testutil"
)

// createTestStore opens a fresh database under t.TempDir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// solvedKnapsack runs the knapsack fixture through the pipeline without an
// oracle.
func solvedKnapsack(t *testing.T) *pipeline.Result {
	t.Helper()
	p := pipeline.New(nil, solver.NewSimplex(), pipeline.WithClock(testutil.NewStepClock(0)))
	res := p.RunIR(context.Background(), "knapsack-1", testutil.Knapsack())
	if !res.Solved() {
		t.Fatalf("knapsack fixture did not solve: %s %s", res.FailureStage, res.Error)
	}
	return res
}

// createTestRun builds a minimal run with the given ID.
func createTestRun(id, instanceID string) Run {
	return Run{
		ID:         id,
		InstanceID: instanceID,
		Question:   "q",
		StatusName: "NOT_SOLVED",
		IRDict:     []byte("null"),
		IR:         []byte("null"),
		Report:     []byte("null"),
		Trace:      []byte("null"),
	}
}
