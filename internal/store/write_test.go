package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/testutil"
)

func TestWriteRun_AssignsSequence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"run-b", "run-a", "run-c"} {
		seq, inserted, err := s.WriteRun(ctx, createTestRun(id, "x"))
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, int64(i+1), seq)
	}
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, inserted, err := s.WriteRun(ctx, createTestRun("run-1", "x"))
	require.NoError(t, err)
	require.True(t, inserted)
	_, _, err = s.WriteRun(ctx, createTestRun("run-2", "x"))
	require.NoError(t, err)

	again := createTestRun("run-1", "changed")
	seq, inserted, err := s.WriteRun(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first, seq)

	stored, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "x", stored.InstanceID, "second write must not overwrite")

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), last)
}

func TestWriteRun_IgnoresCallerSeq(t *testing.T) {
	s := createTestStore(t)
	run := createTestRun("run-1", "x")
	run.Seq = 99

	seq, _, err := s.WriteRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

func TestWriteRun_EmptyDocsStoredAsNull(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.WriteRun(ctx, Run{ID: "bare"})
	require.NoError(t, err)

	var irDict, trace string
	err = s.db.QueryRow(`SELECT ir_dict_json, trace_json FROM runs WHERE id = ?`, "bare").Scan(&irDict, &trace)
	require.NoError(t, err)
	assert.Equal(t, "null", irDict)
	assert.Equal(t, "null", trace)
}

func TestWriteRun_Concurrent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ids := testutil.NewSequenceIDs("run")

	const n = 20
	var mu sync.Mutex
	seen := make(map[int64]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, inserted, err := s.WriteRun(ctx, createTestRun(ids.Generate(), "x"))
			assert.NoError(t, err)
			assert.True(t, inserted)
			mu.Lock()
			seen[seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n, "every write gets a distinct seq")
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "seq %d missing", i)
	}
}

func TestWriteRun_CanceledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.WriteRun(ctx, createTestRun("run-1", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write run")
}

func TestRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ids := testutil.NewSequenceIDs("run")
	res := solvedKnapsack(t)

	run, err := s.Record(ctx, ids, "pick items", res)
	require.NoError(t, err)
	assert.Equal(t, "run-0001", run.ID)
	assert.Equal(t, int64(1), run.Seq)

	stored, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "knapsack-1", stored.InstanceID)
	assert.Equal(t, "pick items", stored.Question)
	assert.Equal(t, res.IR.Meta.ProblemID, stored.ProblemID)
	assert.Equal(t, "OPTIMAL", stored.StatusName)
	require.NotNil(t, stored.Objective)
	assert.InDelta(t, *res.Objective, *stored.Objective, 1e-9)
	assert.Empty(t, stored.FailureStage)
	assert.NotEmpty(t, stored.IRHash)
	assert.Equal(t, res.Trace.IRHash, stored.IRHash)
}
