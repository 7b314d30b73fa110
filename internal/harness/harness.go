package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/nlopt/internal/adapter"
	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/llm"
	"github.com/roach88/nlopt/internal/pipeline"
	"github.com/roach88/nlopt/internal/solver"
	"github.com/roach88/nlopt/internal/store"
	"github.com/roach88/nlopt/internal/testutil"
	"github.com/roach88/nlopt/internal/verifier"
)

// StageStep is the fake clock step between stage boundaries, so stage
// timings in scenario traces are reproducible.
const StageStep = 10 * time.Millisecond

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and run IDs, and records
// every run in a private store.
type Harness struct {
	store  *store.Store
	ids    *testutil.SequenceIDs
	clock  *testutil.StepClock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Build the pipeline with the scenario's verifier switches
//  3. Run the reply through every stage, or the fixture from the verifier on
//  4. Record the run and read it back
//  5. Evaluate expectations
//
// The returned error covers harness failures only. A run that fails at
// some stage is a normal result checked by expect.failure_stage.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		ids:    testutil.NewSequenceIDs("run"),
		clock:  testutil.NewStepClock(StageStep),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	res, err := h.execute(ctx, scenario)
	if err != nil {
		return nil, err
	}

	rec, err := h.store.Record(ctx, h.ids, scenario.Question, res)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	stored, err := h.store.ReadRun(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", rec.ID, err)
	}

	result := NewResult(scenario.Name)
	result.Run = res
	for _, msg := range EvaluateExpect(res, scenario.Expect) {
		result.AddError(msg)
	}
	if err := assertStored(stored, res); err != nil {
		result.AddError(err.Error())
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"run_id", rec.ID,
		"status", res.StatusName,
		"pass", result.Pass,
	)
	return result, nil
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario) (*pipeline.Result, error) {
	sw := scenario.switches()
	vcfg := verifier.DefaultConfig()
	vcfg.Layer1 = sw.Layer1
	vcfg.Layer2 = sw.Layer2
	vcfg.Layer3 = sw.Layer3
	vcfg.Repairs = sw.Repairs
	vcfg.Logger = h.logger

	opts := []pipeline.Option{
		pipeline.WithVerifier(vcfg),
		pipeline.WithLogger(h.logger),
		pipeline.WithClock(h.clock),
	}

	if scenario.Fixture != "" {
		build, ok := Fixtures[scenario.Fixture]
		if !ok {
			return nil, fmt.Errorf("unknown fixture %q", scenario.Fixture)
		}
		m := build()
		if scenario.Question != "" {
			m.Meta.Description = scenario.Question
		}
		p := pipeline.New(nil, solver.NewSimplex(), opts...)
		return p.RunIR(ctx, scenario.Name, m), nil
	}

	// The script holds one reply. An L3 rebuild finds it exhausted.
	oracle := llm.NewScripted(scenario.Reply)
	ad := adapter.New(oracle, adapter.Options{Logger: h.logger})
	p := pipeline.New(ad, solver.NewSimplex(), opts...)
	return p.Run(ctx, pipeline.Instance{ID: scenario.Name, Question: scenario.Question}), nil
}

// assertStored checks that the recorded run carries the same final IR and
// outcome as the live result.
func assertStored(stored store.Run, res *pipeline.Result) error {
	m, err := stored.Model()
	if err != nil {
		return &AssertionError{Type: "stored_run", Expected: "decodable IR", Actual: err.Error()}
	}
	want, got := "", ""
	if res.IR != nil {
		want = ir.MustHash(res.IR)
	}
	if m != nil {
		got = ir.MustHash(m)
	}
	if want != got {
		return &AssertionError{
			Type:     "stored_run",
			Expected: fmt.Sprintf("ir hash %s", want),
			Actual:   fmt.Sprintf("ir hash %s", got),
		}
	}
	if stored.StatusName != res.StatusName || string(stored.FailureStage) != string(res.FailureStage) {
		return &AssertionError{
			Type:     "stored_run",
			Expected: fmt.Sprintf("status %s, failure stage %q", res.StatusName, res.FailureStage),
			Actual:   fmt.Sprintf("status %s, failure stage %q", stored.StatusName, stored.FailureStage),
		}
	}
	return nil
}
