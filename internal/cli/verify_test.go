package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nlopt/internal/adapter"
	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/testutil"
)

type verifyOutput struct {
	ProblemID  string `json:"problem_id"`
	HashBefore string `json:"ir_hash_before"`
	HashAfter  string `json:"ir_hash_after"`
	Changed    bool   `json:"changed"`
	Report     struct {
		OK      bool     `json:"ok"`
		Notes   []string `json:"notes"`
		Repairs []struct {
			Rule string `json:"rule"`
		} `json:"repairs"`
		Issues []struct {
			Rule string `json:"rule"`
		} `json:"issues"`
	} `json:"report"`
}

func TestVerifyCleanModel(t *testing.T) {
	path := writeModel(t, t.TempDir(), "knapsack.json", testutil.Knapsack())

	stdout, _, err := execute(t, nil, "--format", "json", "verify", path)
	require.NoError(t, err)

	var out verifyOutput
	decodeData(t, stdout, &out)
	assert.Equal(t, "knapsack", out.ProblemID)
	assert.True(t, out.Report.OK)
	assert.False(t, out.Changed)
	assert.Equal(t, out.HashBefore, out.HashAfter)
	assert.Empty(t, out.Report.Repairs)
	assert.Contains(t, out.Report.Notes, "L3 skipped: no rebuilder or solver backend configured")
}

func TestVerifyRepairs(t *testing.T) {
	dir := t.TempDir()
	path := writeModel(t, dir, "unroll.json", testutil.Unroll())
	repaired := filepath.Join(dir, "repaired.json")

	stdout, _, err := execute(t, nil, "verify", "--output", repaired, path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Changed: true")
	assert.Contains(t, stdout, "L1-R4")

	data, err := os.ReadFile(repaired)
	require.NoError(t, err)
	m, err := adapter.Decode(data)
	require.NoError(t, err)
	assert.Nil(t, m.Constraint("limit"))
	assert.NotNil(t, m.Constraint("limit__p_p1"))

	canonical, err := ir.MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, string(canonical)+"\n", string(data), "output is canonical JSON")
}

func TestVerifySwitches(t *testing.T) {
	path := writeModel(t, t.TempDir(), "unroll.json", testutil.Unroll())

	tests := []struct {
		name        string
		flags       []string
		wantChanged bool
		wantIssues  bool
	}{
		{"no repair reports only", []string{"--no-repair"}, false, true},
		{"no layer1 skips unroll", []string{"--no-layer1"}, false, false},
		{"defaults repair", nil, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--format", "json", "verify", "--no-layer3"}, tt.flags...)
			stdout, _, err := execute(t, nil, append(args, path)...)
			require.NoError(t, err)

			var out verifyOutput
			decodeData(t, stdout, &out)
			assert.Equal(t, tt.wantChanged, out.Changed)
			hasUnroll := false
			for _, is := range out.Report.Issues {
				if is.Rule == "L1-R4" {
					hasUnroll = true
				}
			}
			assert.Equal(t, tt.wantIssues, hasUnroll)
		})
	}
}

func TestVerifyInputErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"meta": {}}`), 0o644))

	tests := []struct {
		name string
		path string
		code int
		want string
	}{
		{"missing file", filepath.Join(dir, "missing.json"), ExitCommandError, "failed to read IR"},
		{"invalid IR", bad, ExitFailure, "invalid IR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, nil, "verify", tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
