package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/nlopt/internal/llm"
	fixtures "github.com/roach88/nlopt/internal/testutil"
)

func TestRunBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	reply := modelJSON(t, fixtures.Knapsack())
	replies := make([]string, 8)
	for i := range replies {
		replies[i] = reply
	}
	oracle := llm.NewScripted(replies...)

	instances := make([]Instance, 8)
	for i := range instances {
		instances[i] = Instance{ID: fmt.Sprintf("b%d", i), Question: question}
	}
	instances[3].Question = ""

	var mu sync.Mutex
	seen := make(map[int]bool)
	results := newPipeline(oracle).RunBatch(context.Background(), instances, 3, func(i int, r *Result) {
		mu.Lock()
		defer mu.Unlock()
		seen[i] = true
	})

	require.Len(t, results, len(instances))
	assert.Len(t, seen, len(instances))
	for i, res := range results {
		assert.Equal(t, instances[i].ID, res.InstanceID)
		if i == 3 {
			assert.Equal(t, StageBuildPrompts, res.FailureStage)
			continue
		}
		require.Empty(t, res.FailureStage, res.Error)
		assert.InDelta(t, 7.0, *res.Objective, 1e-6)
	}
	assert.Equal(t, 1, oracle.Remaining())
}

func TestRunBatchUnlimited(t *testing.T) {
	defer goleak.VerifyNone(t)

	results := newPipeline(llm.NewScripted()).RunBatch(context.Background(), []Instance{{ID: "a"}, {ID: "b"}}, 0, nil)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].InstanceID)
	assert.Equal(t, "b", results[1].InstanceID)
}

func TestRunBatchEmpty(t *testing.T) {
	assert.Empty(t, newPipeline(llm.NewScripted()).RunBatch(context.Background(), nil, 4, nil))
}
