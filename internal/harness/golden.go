package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/nlopt/internal/ir"
)

// RunWithGolden executes a scenario and, when the scenario asks for it,
// compares the canonical final IR against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the IR doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if scenario.Expect.Golden {
		if err := AssertGolden(t, scenario.Name, result.Run.IR); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// AssertGolden compares the canonical JSON of m against a golden file.
// Canonical JSON sorts keys and normalizes numbers, so the file changes
// only when the model does.
func AssertGolden(t *testing.T, name string, m *ir.ModelIR) error {
	t.Helper()

	var data []byte
	if m == nil {
		data = []byte("null")
	} else {
		var err error
		if data, err = ir.MarshalCanonical(m); err != nil {
			return err
		}
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
