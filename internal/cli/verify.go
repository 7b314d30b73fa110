package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/verifier"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Output   string
	NoRepair bool
	NoLayer1 bool
	NoLayer2 bool
	NoLayer3 bool
}

// VerifyResult is the output of the verify command.
type VerifyResult struct {
	ProblemID  string           `json:"problem_id"`
	HashBefore string           `json:"ir_hash_before"`
	HashAfter  string           `json:"ir_hash_after"`
	Changed    bool             `json:"changed"`
	Report     *verifier.Report `json:"report"`
	IR         *ir.ModelIR      `json:"ir"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <ir.json>",
		Short: "Run the verifier on an IR file",
		Long: `Run the verifier layers over an IR JSON file ("-" reads stdin) and report
issues and repairs. With --no-repair the IR is left untouched and only
issues are reported. --output writes the repaired IR as canonical JSON.

Layer 3 needs an oracle to rebuild models and is reported as skipped here.

Exit codes:
  0 - Verifier completed
  1 - IR invalid or a rule raised an exception
  2 - Command error

Examples:
  nlopt verify model.json
  nlopt verify model.json --no-repair --format json
  nlopt verify model.json --output repaired.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the repaired IR here")
	cmd.Flags().BoolVar(&opts.NoRepair, "no-repair", false, "report issues without repairing")
	cmd.Flags().BoolVar(&opts.NoLayer1, "no-layer1", false, "disable layer 1 (compile safety)")
	cmd.Flags().BoolVar(&opts.NoLayer2, "no-layer2", false, "disable layer 2 (semantic sanity)")
	cmd.Flags().BoolVar(&opts.NoLayer3, "no-layer3", false, "disable layer 3 (template rescue)")

	return cmd
}

func runVerify(opts *VerifyOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	m, err := loadModel(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cmd.ErrOrStderr())

	vc := cfg.VerifierConfig(logger)
	vc.Backend = cfg.Backend(logger)
	if opts.NoRepair {
		vc.Repairs = false
	}
	if opts.NoLayer1 {
		vc.Layer1 = false
	}
	if opts.NoLayer2 {
		vc.Layer2 = false
	}
	if opts.NoLayer3 {
		vc.Layer3 = false
	}

	before, err := ir.Hash(m)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to hash IR", err)
	}
	out, report := verifier.Run(ctx, m, vc)
	after, err := ir.Hash(out)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to hash repaired IR", err)
	}

	result := VerifyResult{
		ProblemID:  out.Meta.ProblemID,
		HashBefore: before,
		HashAfter:  after,
		Changed:    before != after,
		Report:     report,
		IR:         out,
	}

	if opts.Output != "" {
		data, err := ir.MarshalCanonical(out)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode IR", err)
		}
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write IR", err)
		}
	}

	f := opts.formatter(cmd)
	if err := f.Emit(result, func(w io.Writer) error {
		return writeVerify(w, result, opts.Verbose)
	}); err != nil {
		return err
	}

	if !report.OK {
		return NewExitError(ExitFailure, "verifier raised exceptions")
	}
	return nil
}

func writeVerify(w io.Writer, r VerifyResult, verbose bool) error {
	rep := r.Report
	fmt.Fprintf(w, "Problem: %s\n", r.ProblemID)
	fmt.Fprintf(w, "OK:      %v\n", rep.OK)
	fmt.Fprintf(w, "Changed: %v\n", r.Changed)
	for _, l := range verifier.Layers {
		st := rep.Layers[l]
		if st == nil {
			continue
		}
		fmt.Fprintf(w, "  %s ran=%v changed=%v\n", l, st.Ran, st.ChangedIR)
	}
	fmt.Fprintf(w, "Issues (%d):\n", len(rep.Issues))
	for _, is := range rep.Issues {
		fmt.Fprintf(w, "  [%s %s] %s: %s\n", is.Layer, is.Severity, is.Rule, is.Message)
	}
	fmt.Fprintf(w, "Repairs (%d):\n", len(rep.Repairs))
	for _, rp := range rep.Repairs {
		fmt.Fprintf(w, "  [%s] %s: %s\n", rp.Layer, rp.Rule, rp.Action)
	}
	writeList(w, "Notes", rep.Notes)
	if verbose {
		fmt.Fprintf(w, "Hash before: %s\n", r.HashBefore)
		fmt.Fprintf(w, "Hash after:  %s\n", r.HashAfter)
	}
	return nil
}
