package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/pipeline"
)

// The fixture path and the reply path must land on the same final IR.
func TestAssertGolden_FixtureMatchesReply(t *testing.T) {
	reply, err := LoadScenario(filepath.Join(scenarioDir, "s1_knapsack.yaml"))
	require.NoError(t, err)

	result, err := Run(context.Background(), &Scenario{
		Name:        "knapsack_fixture",
		Description: "knapsack fixture",
		Fixture:     "knapsack",
		Question:    reply.Question,
	})
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, reply.Name, result.Run.IR))
}

func TestAssertGolden_UnrollFixture(t *testing.T) {
	reply, err := LoadScenario(filepath.Join(scenarioDir, "s4_unroll.yaml"))
	require.NoError(t, err)

	result, err := Run(context.Background(), &Scenario{
		Name:        "unroll_fixture",
		Description: "unroll fixture",
		Fixture:     "unroll",
		Question:    reply.Question,
	})
	require.NoError(t, err)
	require.Equal(t, pipeline.Stage(""), result.Run.FailureStage)
	require.NoError(t, AssertGolden(t, reply.Name, result.Run.IR))
}
