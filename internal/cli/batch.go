package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nlopt/internal/metrics"
	"github.com/roach88/nlopt/internal/pipeline"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	Output      string
	Concurrency int
	Database    string
	Save        bool
	Estimator   bool
	MetricsAddr string
}

// BatchSummary counts the outcomes of a batch.
type BatchSummary struct {
	Total    int            `json:"total"`
	Solved   int            `json:"solved"`
	Failed   int            `json:"failed"`
	ByStage  map[string]int `json:"failures_by_stage"`
	Recorded int            `json:"recorded"`
	Seconds  float64        `json:"seconds"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch <instances.jsonl>",
		Short: "Solve a JSONL file of questions",
		Long: `Solve every {"id", "question"} line of a JSONL file ("-" reads stdin).

Results are written as JSONL in input order to --output (stdout by default).
Runs go through a bounded worker pool; --metrics-addr serves Prometheus
metrics for the batch at /metrics while it runs.

Examples:
  nlopt batch questions.jsonl --output results.jsonl
  nlopt batch questions.jsonl --concurrency 8 --db ./nlopt.db
  nlopt batch questions.jsonl --metrics-addr :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write results here instead of stdout")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "runs in flight (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "record runs in the configured database")
	cmd.Flags().BoolVar(&opts.Estimator, "estimator", false, "run the self-check estimator")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve /metrics on this address")

	return cmd
}

func runBatch(opts *BatchOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	start := time.Now()

	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read instances", err)
	}
	instances, err := readInstances(data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to parse instances", err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Estimator {
		cfg.Pipeline.Estimator = true
	}
	concurrency := cfg.Pipeline.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}

	logger := opts.logger(cmd.ErrOrStderr())
	oracle, err := opts.oracle(ctx, cfg, logger)
	if err != nil {
		return err
	}

	rec := metrics.New()
	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(ctx, opts.MetricsAddr, rec, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer stop()
	}

	p := newPipeline(cfg, oracle, rec, logger)
	logger.Info("batch starting", "instances", len(instances), "concurrency", concurrency)
	results := p.RunBatch(ctx, instances, concurrency, func(i int, r *pipeline.Result) {
		logger.Debug("instance finished", "instance", r.InstanceID, "solved", r.Solved(), "failure_stage", r.FailureStage)
	})

	summary := summarize(results)

	if opts.Save || opts.Database != "" {
		st, err := openStore(opts.Database, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		ids := opts.ids()
		for i, res := range results {
			if _, err := st.Record(ctx, ids, instances[i].Question, res); err != nil {
				return WrapExitError(ExitCommandError, "failed to record run", err)
			}
			summary.Recorded++
		}
	}
	summary.Seconds = time.Since(start).Seconds()

	w := cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output", err)
		}
		defer f.Close()
		w = f
	}
	if err := writeResults(w, results); err != nil {
		return WrapExitError(ExitCommandError, "failed to write results", err)
	}

	if opts.Output != "" {
		out := opts.formatter(cmd)
		return out.Emit(summary, func(w io.Writer) error {
			return writeSummary(w, summary)
		})
	}
	return writeSummary(cmd.ErrOrStderr(), summary)
}

// readInstances parses JSONL. Blank lines are skipped; a missing id
// becomes the 1-based line number.
func readInstances(data []byte) ([]pipeline.Instance, error) {
	instances := []pipeline.Instance{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var in pipeline.Instance
		dec := json.NewDecoder(strings.NewReader(text))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(in.Question) == "" {
			return nil, fmt.Errorf("line %d: question is required", line)
		}
		if in.ID == "" {
			in.ID = strconv.Itoa(line)
		}
		instances = append(instances, in)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return instances, nil
}

func writeResults(w io.Writer, results []*pipeline.Result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func summarize(results []*pipeline.Result) BatchSummary {
	s := BatchSummary{Total: len(results), ByStage: map[string]int{}}
	for _, r := range results {
		if r.Solved() {
			s.Solved++
			continue
		}
		s.Failed++
		s.ByStage[string(r.FailureStage)]++
	}
	return s
}

func writeSummary(w io.Writer, s BatchSummary) error {
	fmt.Fprintf(w, "Solved %d of %d (%d failed) in %.1fs\n", s.Solved, s.Total, s.Failed, s.Seconds)
	stages := make([]string, 0, len(s.ByStage))
	for st := range s.ByStage {
		stages = append(stages, st)
	}
	sort.Strings(stages)
	for _, st := range stages {
		fmt.Fprintf(w, "  %-18s %d\n", st, s.ByStage[st])
	}
	if s.Recorded > 0 {
		fmt.Fprintf(w, "Recorded %d runs\n", s.Recorded)
	}
	return nil
}

// serveMetrics starts a /metrics listener and returns its shutdown func.
func serveMetrics(ctx context.Context, addr string, rec *metrics.Recorder, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
