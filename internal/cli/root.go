package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/nlopt/internal/adapter"
	"github.com/roach88/nlopt/internal/config"
	"github.com/roach88/nlopt/internal/llm"
	"github.com/roach88/nlopt/internal/metrics"
	"github.com/roach88/nlopt/internal/pipeline"
	"github.com/roach88/nlopt/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Oracle overrides the configured LLM provider (for testing).
	Oracle llm.Oracle

	// IDs overrides the run ID generator (for testing). If nil, defaults
	// to UUIDv7Generator.
	IDs store.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the nlopt CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nlopt",
		Short: "nlopt - natural language to optimization",
		Long: `Translate optimization questions into a structured model, verify and
repair it, and solve it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")

	cmd.AddCommand(NewSolveCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger returns a text logger on w; --verbose lowers the level to debug.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the configuration named by --config.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// ids returns the run ID generator.
func (o *RootOptions) ids() store.IDGenerator {
	if o.IDs != nil {
		return o.IDs
	}
	return store.UUIDv7Generator{}
}

// oracle returns the injected oracle or builds the configured one.
func (o *RootOptions) oracle(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Oracle, error) {
	if o.Oracle != nil {
		return o.Oracle, nil
	}
	oracle, err := llm.New(ctx, cfg.LLMOptions(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create llm oracle", err)
	}
	return oracle, nil
}

// newPipeline wires a pipeline from cfg. oracle may be nil for commands
// that never translate.
func newPipeline(cfg *config.Config, oracle llm.Oracle, rec *metrics.Recorder, logger *slog.Logger) *pipeline.Pipeline {
	var ad *adapter.Adapter
	if oracle != nil {
		ad = adapter.New(oracle, cfg.AdapterOptions(logger))
	}
	opts := cfg.PipelineOptions(logger)
	if rec != nil {
		opts = append(opts, pipeline.WithMetrics(rec))
	}
	return pipeline.New(ad, cfg.Backend(logger), opts...)
}

// openStore opens the run database at path, falling back to the
// configured one.
func openStore(path string, cfg *config.Config) (*store.Store, error) {
	if path == "" {
		path = cfg.Store.Path
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
