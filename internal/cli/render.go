package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/nlopt/internal/adapter"
	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/pipeline"
)

// RunView is the output of solve and build.
type RunView struct {
	RunID string `json:"run_id,omitempty"`
	*pipeline.Result
}

// writeResult prints a run in text form.
func writeResult(w io.Writer, v RunView, verbose bool) error {
	res := v.Result
	if v.RunID != "" {
		fmt.Fprintf(w, "Run:       %s\n", v.RunID)
	}
	fmt.Fprintf(w, "Instance:  %s\n", res.InstanceID)
	if res.IR != nil {
		fmt.Fprintf(w, "Problem:   %s\n", res.IR.Meta.ProblemID)
	}
	fmt.Fprintf(w, "Status:    %s (%d)\n", orDash(res.StatusName), res.StatusCode)
	fmt.Fprintf(w, "Objective: %s\n", formatObjective(res.Objective))
	if res.FailureStage != "" {
		fmt.Fprintf(w, "Failed:    %s: %s\n", res.FailureStage, res.Error)
	}
	tr := res.Trace
	fmt.Fprintf(w, "Issues:    %d\n", len(tr.Issues))
	fmt.Fprintf(w, "Repairs:   %d\n", len(tr.Repairs))
	if tr.Estimator != nil {
		fmt.Fprintf(w, "Estimator: %s (confidence %.2f)\n", tr.Estimator.Decision, tr.Estimator.Confidence)
	}
	if !verbose {
		return nil
	}

	writeList(w, "Issues", tr.Issues)
	writeList(w, "Repairs", tr.Repairs)
	writeList(w, "Notes", tr.Notes)
	fmt.Fprintln(w, "Stages:")
	for _, st := range tr.Stages {
		fmt.Fprintf(w, "  %-18s %8.3fs\n", st.Stage, st.Seconds)
	}
	if tr.IRHash != "" {
		fmt.Fprintf(w, "IR hash:   %s\n", tr.IRHash)
	}
	return nil
}

func writeList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

func formatObjective(obj *float64) string {
	if obj == nil {
		return "-"
	}
	return strconv.FormatFloat(*obj, 'g', -1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateID shortens UUIDs for display.
func truncateID(id string) string {
	if len(id) <= 13 {
		return id
	}
	return id[:13] + "..."
}

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// loadModel reads and decodes an IR JSON file.
func loadModel(path string, stdin io.Reader) (*ir.ModelIR, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read IR", err)
	}
	m, err := adapter.Decode(data)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "invalid IR", err)
	}
	return m, nil
}

// instanceName derives a default instance ID from a file path.
func instanceName(path string) string {
	if path == "-" || path == "" {
		return "stdin"
	}
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".json")
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
