package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/llm"
	"github.com/roach88/nlopt/internal/testutil"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	if opts == nil {
		opts = &RootOptions{}
	}
	if opts.IDs == nil {
		opts.IDs = testutil.NewSequenceIDs("run")
	}
	for _, env := range []string{"NLOPT_DB", "NLOPT_PROVIDER", "NLOPT_MODEL", "NLOPT_BASE_URL"} {
		t.Setenv(env, "")
	}

	cmd := newRootCommand(opts)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// scripted returns root options whose oracle answers with each model.
func scripted(t *testing.T, models ...*ir.ModelIR) *RootOptions {
	t.Helper()
	replies := make([]string, len(models))
	for i, m := range models {
		replies[i] = "```json\n" + string(modelJSON(t, m)) + "\n```"
	}
	return &RootOptions{Oracle: llm.NewScripted(replies...)}
}

func modelJSON(t *testing.T, m *ir.ModelIR) []byte {
	t.Helper()
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	return raw
}

// writeModel stores m as JSON under dir and returns the path.
func writeModel(t *testing.T, dir, name string, m *ir.ModelIR) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, modelJSON(t, m), 0o644))
	return path
}

// decodeData unwraps a JSON CLIResponse into out.
func decodeData(t *testing.T, stdout string, out any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dbPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "runs.db")
}
