package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nlopt/internal/pipeline"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions
	File      string
	ID        string
	Database  string
	Save      bool
	Estimator bool
	TimeLimit time.Duration
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve [question]",
		Short: "Translate and solve one question",
		Long: `Translate a natural-language optimization question into a model, verify
and repair it, and solve it.

The question is taken from the arguments or from --file ("-" reads stdin).
With --save (or --db) the run is recorded in the run database.

Exit codes:
  0 - An objective value was found
  1 - The run failed at some stage
  2 - Command error (no question, bad config, database error)

Examples:
  nlopt solve "Maximize 3x + 2y subject to x + y <= 4, x, y >= 0"
  nlopt solve --file question.txt --estimator --format json
  nlopt solve --file question.txt --db ./nlopt.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the question from a file (- for stdin)")
	cmd.Flags().StringVar(&opts.ID, "id", "cli", "instance ID recorded with the result")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "record the run in the configured database")
	cmd.Flags().BoolVar(&opts.Estimator, "estimator", false, "run the self-check estimator")
	cmd.Flags().DurationVar(&opts.TimeLimit, "time-limit", 0, "solver time limit (overrides config)")

	return cmd
}

func runSolve(opts *SolveOptions, args []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	question, err := readQuestion(opts.File, args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Estimator {
		cfg.Pipeline.Estimator = true
	}
	if opts.TimeLimit > 0 {
		cfg.Solver.TimeLimit = opts.TimeLimit
	}

	logger := opts.logger(cmd.ErrOrStderr())
	oracle, err := opts.oracle(ctx, cfg, logger)
	if err != nil {
		return err
	}

	p := newPipeline(cfg, oracle, nil, logger)
	res := p.Run(ctx, pipeline.Instance{ID: opts.ID, Question: question})
	view := RunView{Result: res}

	if opts.Save || opts.Database != "" {
		st, err := openStore(opts.Database, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		run, err := st.Record(ctx, opts.ids(), question, res)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		view.RunID = run.ID
	}

	out := opts.formatter(cmd)
	if err := out.Emit(view, func(w io.Writer) error {
		return writeResult(w, view, opts.Verbose)
	}); err != nil {
		return err
	}

	if !res.Solved() {
		return NewExitError(ExitFailure, fmt.Sprintf("run failed at %s: %s", res.FailureStage, res.Error))
	}
	return nil
}

// readQuestion takes the question from file or args.
func readQuestion(file string, args []string, stdin io.Reader) (string, error) {
	var question string
	switch {
	case file != "" && len(args) > 0:
		return "", NewExitError(ExitCommandError, "pass the question as arguments or --file, not both")
	case file != "":
		data, err := readInput(file, stdin)
		if err != nil {
			return "", WrapExitError(ExitCommandError, "failed to read question", err)
		}
		question = string(data)
	default:
		question = strings.Join(args, " ")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", NewExitError(ExitCommandError, "no question given")
	}
	return question, nil
}
