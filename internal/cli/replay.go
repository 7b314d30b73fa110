package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/roach88/nlopt/internal/adapter"
	"github.com/roach88/nlopt/internal/config"
	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/pipeline"
	"github.com/roach88/nlopt/internal/store"
)

// Replay sources.
const (
	ReplayFromIR   = "ir"
	ReplayFromDict = "ir_dict"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database   string
	InstanceID string
	FromDict   bool
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID           string   `json:"run_id"`
	InstanceID      string   `json:"instance_id"`
	Source          string   `json:"source"`
	Skipped         string   `json:"skipped,omitempty"`
	StoredHash      string   `json:"stored_ir_hash"`
	ReplayHash      string   `json:"replay_ir_hash"`
	StoredStatus    string   `json:"stored_status"`
	ReplayStatus    string   `json:"replay_status"`
	StoredObjective *float64 `json:"stored_objective"`
	ReplayObjective *float64 `json:"replay_objective"`
	Diffs           []string `json:"diffs"`
	Deterministic   bool     `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [run-id...]",
		Short: "Re-run stored runs and check they reproduce",
		Long: `Re-run stored runs through the verifier and solver and compare the IR
hash, status and objective with what was recorded. No LLM is called.

By default the stored final IR is replayed. With --from-dict the oracle's
original JSON is parsed again instead, which also replays the verifier's
repairs. Runs whose estimator replaced the model differ from their oracle
JSON by design; replay them from the final IR.

Without run IDs every stored run (or every run of --instance) is replayed.

Exit codes:
  0 - All replayed runs reproduce
  1 - At least one run differs
  2 - Command error (database not found, unknown run, etc.)

Examples:
  nlopt replay --db ./nlopt.db
  nlopt replay --db ./nlopt.db 0192f3a1-...
  nlopt replay --db ./nlopt.db --instance q17 --from-dict --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to config)")
	cmd.Flags().StringVar(&opts.InstanceID, "instance", "", "replay runs of this instance only")
	cmd.Flags().BoolVar(&opts.FromDict, "from-dict", false, "re-parse the stored oracle JSON")

	return cmd
}

func runReplay(opts *ReplayOptions, ids []string, cmd *cobra.Command) error {
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

	runs, err := selectRuns(ctx, st, ids, opts.InstanceID)
	if err != nil {
		return err
	}

	logger := opts.logger(cmd.ErrOrStderr())
	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	for _, run := range runs {
		rr, err := replayRun(ctx, cfg, run, opts.FromDict, func(c *config.Config) *pipeline.Pipeline {
			return newPipeline(c, nil, nil, logger)
		})
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, rr)
		if !rr.Deterministic {
			result.AllDeterministic = false
		}
	}

	out := opts.formatter(cmd)
	if err := out.Emit(result, func(w io.Writer) error {
		return writeReplay(w, result, opts.Verbose)
	}); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay differs from stored runs")
	}
	return nil
}

func selectRuns(ctx context.Context, st *store.Store, ids []string, instance string) ([]store.Run, error) {
	if len(ids) == 0 {
		runs, err := st.ListRuns(ctx, store.RunFilter{InstanceID: instance})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return runs, nil
	}
	runs := make([]store.Run, 0, len(ids))
	for _, id := range ids {
		run, err := st.ReadRun(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("run %s not found", id))
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// replayRun re-solves one stored run with the verifier switches it was
// recorded with.
func replayRun(ctx context.Context, base *config.Config, run store.Run, fromDict bool, build func(*config.Config) *pipeline.Pipeline) (ReplayRunResult, error) {
	rr := ReplayRunResult{
		RunID:           run.ID,
		InstanceID:      run.InstanceID,
		Source:          ReplayFromIR,
		StoredHash:      run.IRHash,
		StoredStatus:    run.StatusName,
		StoredObjective: run.Objective,
		Diffs:           []string{},
		Deterministic:   true,
	}

	tr, err := run.DecodeTrace()
	if err != nil {
		return rr, err
	}
	cfg := *base
	cfg.Verifier.Layer1 = tr.Switches.Layer1
	cfg.Verifier.Layer2 = tr.Switches.Layer2
	cfg.Verifier.Layer3 = tr.Switches.Layer3
	cfg.Verifier.Repairs = tr.Switches.Repairs
	if tr.TimeLimit > 0 {
		cfg.Solver.TimeLimit = secondsToDuration(tr.TimeLimit)
	}

	var m *ir.ModelIR
	if fromDict {
		rr.Source = ReplayFromDict
		if !run.HasIRDict() {
			rr.Skipped = "no oracle JSON stored"
			return rr, nil
		}
		m, err = adapter.ParseIR(run.IRDict, run.Question, cfg.Pipeline.DescriptionLimit)
		if err != nil {
			rr.Skipped = fmt.Sprintf("oracle JSON does not parse: %v", err)
			return rr, nil
		}
	} else {
		m, err = run.Model()
		if err != nil {
			return rr, err
		}
		if m == nil {
			rr.Skipped = "no IR stored"
			return rr, nil
		}
	}

	res := build(&cfg).RunIR(ctx, run.InstanceID, m)
	rr.ReplayHash = res.Trace.IRHash
	rr.ReplayStatus = res.StatusName
	rr.ReplayObjective = res.Objective

	if rr.ReplayHash != rr.StoredHash {
		rr.Diffs = append(rr.Diffs, "ir_hash")
	}
	if rr.ReplayStatus != rr.StoredStatus {
		rr.Diffs = append(rr.Diffs, "status")
	}
	if !sameObjective(rr.StoredObjective, rr.ReplayObjective) {
		rr.Diffs = append(rr.Diffs, "objective")
	}
	rr.Deterministic = len(rr.Diffs) == 0
	return rr, nil
}

func sameObjective(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) <= 1e-6*math.Max(1, math.Abs(*a))
}

func writeReplay(w io.Writer, r ReplayResult, verbose bool) error {
	if r.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	for _, rr := range r.Runs {
		switch {
		case rr.Skipped != "":
			fmt.Fprintf(w, "%s  SKIP  %s\n", truncateID(rr.RunID), rr.Skipped)
		case rr.Deterministic:
			fmt.Fprintf(w, "%s  OK    %s %s\n", truncateID(rr.RunID), rr.ReplayStatus, formatObjective(rr.ReplayObjective))
		default:
			fmt.Fprintf(w, "%s  DIFF  %v\n", truncateID(rr.RunID), rr.Diffs)
			fmt.Fprintf(w, "    status:    %s -> %s\n", orDash(rr.StoredStatus), orDash(rr.ReplayStatus))
			fmt.Fprintf(w, "    objective: %s -> %s\n", formatObjective(rr.StoredObjective), formatObjective(rr.ReplayObjective))
		}
		if verbose && rr.Skipped == "" {
			fmt.Fprintf(w, "    source: %s\n", rr.Source)
			fmt.Fprintf(w, "    hash:   %s -> %s\n", orDash(rr.StoredHash), orDash(rr.ReplayHash))
		}
	}
	status := "all runs reproduce"
	if !r.AllDeterministic {
		status = "differences found"
	}
	fmt.Fprintf(w, "\nReplayed %d runs: %s\n", r.TotalRuns, status)
	return nil
}
