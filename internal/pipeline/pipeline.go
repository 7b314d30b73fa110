package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/roach88/nlopt/internal/adapter"
	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/lower"
	"github.com/roach88/nlopt/internal/metrics"
	"github.com/roach88/nlopt/internal/solver"
	"github.com/roach88/nlopt/internal/verifier"
)

// DefaultTimeLimit bounds each optimize call.
const DefaultTimeLimit = 60 * time.Second

// Clock reads wall time for stage timings.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Pipeline wires the adapter, verifier and solver into runs.
type Pipeline struct {
	adapter    *adapter.Adapter
	backend    solver.Backend
	verifier   verifier.Config
	timeLimit  time.Duration
	estimator  bool
	confidence float64
	metrics    *metrics.Recorder
	logger     *slog.Logger
	clock      Clock
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithVerifier sets the verifier configuration. Backend and Rebuilder are
// filled in per run when left nil.
func WithVerifier(cfg verifier.Config) Option {
	return func(p *Pipeline) {
		p.verifier = cfg
	}
}

// WithTimeLimit sets the optimize time limit. Zero or less keeps the default.
func WithTimeLimit(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeLimit = d
		}
	}
}

// WithEstimator turns on the self-check stages. confidence is the score at
// or above which the first model is kept on a tie; zero means
// DefaultEstimatorConfidence.
func WithEstimator(confidence float64) Option {
	return func(p *Pipeline) {
		p.estimator = true
		if confidence > 0 {
			p.confidence = confidence
		}
	}
}

// WithMetrics records stage timings and outcomes.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.metrics = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock replaces the wall clock used for stage timings.
func WithClock(c Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// New creates a Pipeline. ad may be nil when only RunIR is used.
func New(ad *adapter.Adapter, backend solver.Backend, opts ...Option) *Pipeline {
	p := &Pipeline{
		adapter:    ad,
		backend:    backend,
		verifier:   verifier.DefaultConfig(),
		timeLimit:  DefaultTimeLimit,
		confidence: DefaultEstimatorConfidence,
		logger:     slog.Default(),
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is the state of one pipeline run.
type run struct {
	p   *Pipeline
	res *Result
	log *slog.Logger
}

func (p *Pipeline) start(id string) *run {
	res := &Result{
		InstanceID: id,
		Trace: Trace{
			TimeLimit: p.timeLimit.Seconds(),
			Switches: Switches{
				Layer1:    p.verifier.Layer1,
				Layer2:    p.verifier.Layer2,
				Layer3:    p.verifier.Layer3,
				Repairs:   p.verifier.Repairs,
				Estimator: p.estimator,
			},
			Issues:  []string{},
			Repairs: []string{},
			Stages:  []StageTiming{},
		},
	}
	if p.adapter != nil {
		res.Trace.Model = p.adapter.Oracle().Name()
	}
	return &run{p: p, res: res, log: p.logger.With("instance", id)}
}

func (r *run) finish() *Result {
	if r.res.IR != nil {
		if h, err := ir.Hash(r.res.IR); err == nil {
			r.res.Trace.IRHash = h
		}
	}
	r.p.metrics.Run(string(r.res.FailureStage))
	r.log.Info("run finished",
		"status", r.res.StatusName,
		"failure_stage", r.res.FailureStage,
		"solved", r.res.Solved())
	return r.res
}

// stage runs fn as stage s, timing it and turning errors and panics into
// the run's failure. It reports whether the run may continue.
func (r *run) stage(s Stage, fn func() error) bool {
	start := r.p.clock.Now()
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("stage panicked",
					"stage", s,
					"panic", rec,
					"stack", string(debug.Stack()))
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		return fn()
	}()
	d := r.p.clock.Now().Sub(start)
	r.res.Trace.Stages = append(r.res.Trace.Stages, StageTiming{Stage: s, Seconds: d.Seconds()})
	r.p.metrics.Stage(string(s), d)

	if err != nil {
		r.fail(s, err)
		return false
	}
	r.log.Debug("stage done", "stage", s, "duration", d)
	return true
}

func (r *run) fail(s Stage, err error) {
	r.res.err = &StageError{Stage: s, Err: err}
	r.res.FailureStage = s
	r.res.Error = err.Error()
	r.res.Trace.FailureStage = s
	r.res.Trace.Error = r.res.Error
	r.log.Warn("stage failed", "stage", s, "error", err)
}

// Run solves one question. It never returns an error; see Result.
func (p *Pipeline) Run(ctx context.Context, in Instance) *Result {
	r := p.start(in.ID)
	if p.adapter == nil {
		r.fail(StageBuildPrompts, errors.New("no adapter configured"))
		return r.finish()
	}

	var prompts adapter.Prompts
	ok := r.stage(StageBuildPrompts, func() (err error) {
		prompts, err = adapter.BuildPrompts(in.Question)
		return err
	})
	if !ok {
		return r.finish()
	}

	var reply string
	ok = r.stage(StageLLMCall, func() (err error) {
		reply, err = p.adapter.Call(ctx, prompts)
		return err
	})
	if !ok {
		return r.finish()
	}

	var raw []byte
	ok = r.stage(StageJSONExtract, func() error {
		var err error
		if raw, _, err = adapter.ExtractJSON(reply); err != nil {
			return err
		}
		v, err := ir.DecodeJSON(raw)
		if err != nil {
			return err
		}
		d, isDict := v.(*ir.Dict)
		if !isDict {
			return fmt.Errorf("reply JSON is %T, not an object", v)
		}
		r.res.IRDict = d
		return nil
	})
	if !ok {
		return r.finish()
	}

	var m *ir.ModelIR
	ok = r.stage(StageIRParse, func() (err error) {
		m, err = p.adapter.ParseIR(raw, in.Question)
		return err
	})
	if !ok {
		return r.finish()
	}
	r.res.IR = m

	p.solve(ctx, r, m, in.Question)
	return r.finish()
}

// RunIR runs the verifier and solver stages on an already parsed model.
// No oracle is called: L3 is skipped and the estimator is off.
func (p *Pipeline) RunIR(ctx context.Context, id string, m *ir.ModelIR) *Result {
	r := p.start(id)
	r.res.Trace.Switches.Estimator = false
	if m == nil {
		r.fail(StageIRParse, errors.New("no model"))
		return r.finish()
	}
	m = m.Clone()
	r.res.IR = m
	if d, err := m.Dict(); err == nil {
		r.res.IRDict = d
	}
	p.solve(ctx, r, m, "")
	return r.finish()
}

// verifierConfig fills the per-run collaborators into the configured
// verifier settings.
func (p *Pipeline) verifierConfig(question string) verifier.Config {
	cfg := p.verifier
	if cfg.Backend == nil {
		cfg.Backend = p.backend
	}
	if cfg.Rebuilder == nil && p.adapter != nil && question != "" {
		cfg.Rebuilder = p.adapter.Rebuilder(question)
	}
	if cfg.Logger == nil {
		cfg.Logger = p.logger
	}
	return cfg
}

func (p *Pipeline) solve(ctx context.Context, r *run, m *ir.ModelIR, question string) {
	ok := r.stage(StageVerifier, func() error {
		fixed, report := verifier.Run(ctx, m, p.verifierConfig(question))
		m = fixed
		r.res.IR = fixed
		r.res.VerifierReport = report
		r.res.Trace.Issues = report.IssueSummaries()
		r.res.Trace.Repairs = report.RepairSummaries()
		r.res.Trace.Notes = report.Notes
		for _, is := range report.Issues {
			p.metrics.Issue(is.Rule, is.Kind)
		}
		for _, rep := range report.Repairs {
			p.metrics.Repair(rep.Rule, rep.Action)
		}
		return nil
	})
	if !ok {
		return
	}

	var model solver.Model
	ok = r.stage(StageSolverBuild, func() (err error) {
		model, err = lower.Build(ctx, m, p.backend)
		return err
	})
	if !ok {
		return
	}

	var out *lower.Outcome
	ok = r.stage(StageSolverOptimize, func() (err error) {
		out, err = lower.Optimize(ctx, model, p.timeLimit)
		if err != nil {
			return err
		}
		p.metrics.Status(out.Status.String())
		r.res.setOutcome(out)
		if !out.Acceptable() {
			return fmt.Errorf("solver ended %s with %d solution(s)", out.Status, out.SolCount)
		}
		return nil
	})
	if !ok {
		return
	}

	if p.estimator && p.adapter != nil && question != "" {
		p.estimate(ctx, r, m, out, question)
	}
}

// estimate runs the self-check stages on a solved model.
func (p *Pipeline) estimate(ctx context.Context, r *run, m *ir.ModelIR, out *lower.Outcome, question string) {
	tr := &EstimatorTrace{}
	r.res.Trace.Estimator = tr

	var check *adapter.SelfCheck
	ok := r.stage(StageEstimatorLLM, func() (err error) {
		check, err = p.adapter.SelfCheck(ctx, question, m, out)
		return err
	})
	if !ok {
		return
	}
	tr.Confidence = check.Confidence
	p.metrics.Confidence(check.Confidence)
	if check.CorrectedModel == nil {
		tr.Decision = DecisionNoCorrection
		return
	}
	tr.Corrected = true

	var rebuilt *ir.ModelIR
	var alt *lower.Outcome
	ok = r.stage(StageEstimatorRebuild, func() error {
		// The corrected model is verified like any other LLM output, but
		// without a second template rescue.
		cfg := p.verifierConfig(question)
		cfg.Layer3 = false
		fixed, _ := verifier.Run(ctx, check.CorrectedModel, cfg)
		o, err := lower.Solve(ctx, fixed, p.backend, p.timeLimit)
		if err != nil {
			return err
		}
		p.metrics.Status(o.Status.String())
		rebuilt, alt = fixed, o
		return nil
	})
	if !ok {
		return
	}

	tr.RebuildStatus = alt.Status.String()
	if alt.Acceptable() {
		tr.RebuildObjective = alt.Objective
	}
	tr.Decision = decide(modelSense(m), out, alt, check.Confidence, p.confidence)
	r.log.Info("estimator decision",
		"decision", tr.Decision,
		"confidence", check.Confidence,
		"rebuild_status", tr.RebuildStatus)
	if tr.Decision.Replaces() {
		r.res.IR = rebuilt
		r.res.setOutcome(alt)
	}
}
