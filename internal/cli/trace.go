package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/nlopt/internal/pipeline"
	"github.com/roach88/nlopt/internal/store"
	"github.com/roach88/nlopt/internal/verifier"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	InstanceID string
	ProblemID  string
	Stage      string
	FailedOnly bool
	Limit      int
}

// RunSummary is one line of the run listing.
type RunSummary struct {
	ID           string   `json:"id"`
	Seq          int64    `json:"seq"`
	InstanceID   string   `json:"instance_id"`
	ProblemID    string   `json:"problem_id"`
	StatusName   string   `json:"status_name"`
	Objective    *float64 `json:"objective"`
	FailureStage string   `json:"failure_stage,omitempty"`
}

// TraceResult is the detail view of one run.
type TraceResult struct {
	RunSummary
	Question string           `json:"question"`
	Error    string           `json:"error,omitempty"`
	Trace    pipeline.Trace   `json:"trace"`
	Report   *verifier.Report `json:"verifier_report"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show stored runs",
		Long: `Show the trace of a stored run: stage timings, verifier issues and
repairs, notes and the estimator decision.

Without a run ID, list stored runs in sequence order, optionally filtered.

Examples:
  nlopt trace --db ./nlopt.db
  nlopt trace --db ./nlopt.db --failed --stage solver_optimize
  nlopt trace --db ./nlopt.db 0192f3a1-... --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runTraceRun(opts, args[0], cmd)
			}
			return runTraceList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to config)")
	cmd.Flags().StringVar(&opts.InstanceID, "instance", "", "list runs of this instance")
	cmd.Flags().StringVar(&opts.ProblemID, "problem", "", "list runs of this problem ID")
	cmd.Flags().StringVar(&opts.Stage, "stage", "", "list runs that failed at this stage")
	cmd.Flags().BoolVar(&opts.FailedOnly, "failed", false, "list failed runs only")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "list at most this many runs")

	return cmd
}

func runTraceList(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	if opts.Stage != "" && !knownStage(opts.Stage) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown stage %q", opts.Stage))
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(opts.Database, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx, store.RunFilter{
		InstanceID:   opts.InstanceID,
		ProblemID:    opts.ProblemID,
		FailureStage: opts.Stage,
		FailedOnly:   opts.FailedOnly,
		Limit:        opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = summarizeRun(r)
	}

	out := opts.formatter(cmd)
	return out.Emit(summaries, func(w io.Writer) error {
		return writeRunList(w, summaries)
	})
}

func runTraceRun(opts *TraceOptions, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(opts.Database, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run %s not found", id))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	tr, err := run.DecodeTrace()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode trace", err)
	}
	rep, err := run.VerifierReport()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode report", err)
	}

	result := TraceResult{
		RunSummary: summarizeRun(run),
		Question:   run.Question,
		Error:      run.Error,
		Trace:      tr,
		Report:     rep,
	}

	out := opts.formatter(cmd)
	return out.Emit(result, func(w io.Writer) error {
		return writeTrace(w, result, opts.Verbose)
	})
}

func knownStage(s string) bool {
	for _, st := range pipeline.Stages {
		if string(st) == s {
			return true
		}
	}
	return false
}

func summarizeRun(r store.Run) RunSummary {
	return RunSummary{
		ID:           r.ID,
		Seq:          r.Seq,
		InstanceID:   r.InstanceID,
		ProblemID:    r.ProblemID,
		StatusName:   r.StatusName,
		Objective:    r.Objective,
		FailureStage: r.FailureStage,
	}
}

func writeRunList(w io.Writer, runs []RunSummary) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}
	fmt.Fprintf(w, "%-5s %-16s %-12s %-20s %-12s %s\n", "SEQ", "RUN", "INSTANCE", "PROBLEM", "STATUS", "OBJECTIVE")
	for _, r := range runs {
		status := orDash(r.StatusName)
		if r.FailureStage != "" {
			status = "FAIL:" + r.FailureStage
		}
		fmt.Fprintf(w, "%-5d %-16s %-12s %-20s %-12s %s\n",
			r.Seq, truncateID(r.ID), r.InstanceID, orDash(r.ProblemID), status, formatObjective(r.Objective))
	}
	return nil
}

func writeTrace(w io.Writer, r TraceResult, verbose bool) error {
	tr := r.Trace

	fmt.Fprintf(w, "Trace for Run: %s (seq %d)\n", r.ID, r.Seq)
	fmt.Fprintf(w, "Instance:  %s\n", r.InstanceID)
	fmt.Fprintf(w, "Problem:   %s\n", orDash(r.ProblemID))
	fmt.Fprintf(w, "Status:    %s\n", orDash(r.StatusName))
	fmt.Fprintf(w, "Objective: %s\n", formatObjective(r.Objective))
	if r.FailureStage != "" {
		fmt.Fprintf(w, "Failed:    %s: %s\n", r.FailureStage, r.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stages ===")
	if len(tr.Stages) == 0 {
		fmt.Fprintln(w, "  (no stages)")
	}
	for _, st := range tr.Stages {
		fmt.Fprintf(w, "  %-18s %8.3fs\n", st.Stage, st.Seconds)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Verifier ===")
	fmt.Fprintf(w, "  Switches: L1=%v L2=%v L3=%v repairs=%v\n",
		tr.Switches.Layer1, tr.Switches.Layer2, tr.Switches.Layer3, tr.Switches.Repairs)
	if len(tr.Issues) == 0 && len(tr.Repairs) == 0 {
		fmt.Fprintln(w, "  (no issues)")
	}
	for _, is := range tr.Issues {
		fmt.Fprintf(w, "  issue:  %s\n", is)
	}
	for _, rp := range tr.Repairs {
		fmt.Fprintf(w, "  repair: %s\n", rp)
	}
	for _, n := range tr.Notes {
		fmt.Fprintf(w, "  note:   %s\n", n)
	}

	if est := tr.Estimator; est != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Estimator ===")
		fmt.Fprintf(w, "  Decision:   %s\n", est.Decision)
		fmt.Fprintf(w, "  Confidence: %.2f\n", est.Confidence)
		fmt.Fprintf(w, "  Corrected:  %v\n", est.Corrected)
		if est.RebuildStatus != "" {
			fmt.Fprintf(w, "  Rebuild:    %s %s\n", est.RebuildStatus, formatObjective(est.RebuildObjective))
		}
	}

	if verbose {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Question: %s\n", r.Question)
		fmt.Fprintf(w, "Model:    %s\n", orDash(tr.Model))
		fmt.Fprintf(w, "IR hash:  %s\n", orDash(tr.IRHash))
	}
	return nil
}
