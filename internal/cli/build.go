package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	ID        string
	NoVerify  bool
	TimeLimit time.Duration
	Database  string
	Save      bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <ir.json>",
		Short: "Verify, build and solve an IR file without the LLM",
		Long: `Lower an IR JSON file ("-" reads stdin) into a solver model and solve it.
The verifier runs first unless --no-verify is given.

Exit codes:
  0 - An objective value was found
  1 - IR invalid, or the build or solve failed
  2 - Command error

Examples:
  nlopt build model.json
  nlopt build model.json --no-verify --time-limit 10s --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "instance ID (defaults to the file name)")
	cmd.Flags().BoolVar(&opts.NoVerify, "no-verify", false, "skip the verifier")
	cmd.Flags().DurationVar(&opts.TimeLimit, "time-limit", 0, "solver time limit (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "record the run in the configured database")

	return cmd
}

func runBuild(opts *BuildOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	m, err := loadModel(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.NoVerify {
		cfg.Verifier.Layer1 = false
		cfg.Verifier.Layer2 = false
		cfg.Verifier.Layer3 = false
	}
	if opts.TimeLimit > 0 {
		cfg.Solver.TimeLimit = opts.TimeLimit
	}

	id := opts.ID
	if id == "" {
		id = instanceName(path)
	}

	logger := opts.logger(cmd.ErrOrStderr())
	res := newPipeline(cfg, nil, nil, logger).RunIR(ctx, id, m)
	view := RunView{Result: res}

	if opts.Save || opts.Database != "" {
		st, err := openStore(opts.Database, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		run, err := st.Record(ctx, opts.ids(), m.Meta.Description, res)
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
		return NewExitError(ExitFailure, fmt.Sprintf("build failed at %s: %s", res.FailureStage, res.Error))
	}
	return nil
}
