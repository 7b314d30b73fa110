package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/lower"
	"github.com/roach88/nlopt/internal/solver"
)

// Layer3Rules returns the template rescue rule.
func Layer3Rules(cfg Config) []Rule {
	cfg = cfg.withDefaults()
	return []Rule{&rescueRule{
		rule:      rule{"L3-R1", L3},
		threshold: cfg.RescueThreshold,
		timeLimit: cfg.RescueTimeLimit,
		rebuilder: cfg.Rebuilder,
		backend:   cfg.Backend,
		cfg:       cfg,
	}}
}

type rescueRule struct {
	rule
	threshold float64
	timeLimit time.Duration
	rebuilder Rebuilder
	backend   solver.Backend
	cfg       Config
}

type rescuePlan struct {
	Template *Template
	Scores   []TemplateScore
}

// probe reports why the current IR needs rescue, or "" when it builds and
// reaches an acceptable status within the rescue budget.
func (r *rescueRule) probe(ctx context.Context, m *ir.ModelIR) string {
	out, err := lower.Solve(ctx, m.Clone(), r.backend, r.timeLimit)
	switch {
	case err != nil:
		return err.Error()
	case !out.Acceptable():
		return fmt.Sprintf("status %s with %d solution(s)", out.Status, out.SolCount)
	}
	return ""
}

func (r *rescueRule) Detect(ctx context.Context, m *ir.ModelIR) (*Detection, error) {
	if r.rebuilder == nil || r.backend == nil {
		return nil, nil
	}
	best, scores := Identify(m)
	if best == nil {
		return nil, nil
	}
	top := scores[0]
	for _, s := range scores {
		if s.Template == best.Name {
			top = s
		}
	}
	if top.Score < r.threshold {
		return nil, nil
	}
	reason := r.probe(ctx, m)
	if reason == "" {
		return nil, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return &Detection{
		Issue: Issue{
			Kind:     "template_rescue",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("model resembles %s (score %.2f) but fails: %s", best.Name, top.Score, reason),
			Evidence: map[string]any{
				"template":     best.Name,
				"scores":       scores,
				"probe_reason": reason,
				"time_limit_s": seconds(r.timeLimit),
			},
		},
		Data: rescuePlan{Template: best, Scores: scores},
	}, nil
}

func (r *rescueRule) Apply(ctx context.Context, m *ir.ModelIR, d *Detection) (*Repair, error) {
	plan := d.Data.(rescuePlan)
	rebuilt, err := r.rebuilder.Rebuild(ctx, m.Clone(), plan.Template)
	if err != nil {
		return nil, reject(r.id, "rebuild as %s failed: %v", plan.Template.Name, err)
	}
	if rebuilt == nil {
		return nil, reject(r.id, "rebuild as %s returned no model", plan.Template.Name)
	}

	rebuilt.Meta.ProblemID = m.Meta.ProblemID
	rebuilt.Meta.Source = m.Meta.Source
	rebuilt.Meta.Description = m.Meta.Description

	// The rebuild is LLM output like any other: it goes through the
	// compile-safety and sanity layers before the acceptance solve.
	inner := r.cfg
	inner.Layer3 = false
	inner.Repairs = true
	rebuilt, sub := Run(ctx, rebuilt, inner)
	if !sub.OK {
		return nil, reject(r.id, "rebuild as %s raised verifier exceptions", plan.Template.Name)
	}

	out, err := lower.Solve(ctx, rebuilt.Clone(), r.backend, r.timeLimit)
	if err != nil {
		return nil, reject(r.id, "rebuild as %s does not build: %v", plan.Template.Name, err)
	}
	if !out.Acceptable() {
		return nil, reject(r.id, "rebuild as %s ended %s with %d solution(s)", plan.Template.Name, out.Status, out.SolCount)
	}

	*m = *rebuilt
	details := map[string]any{
		"template":     plan.Template.Name,
		"status":       out.Status.String(),
		"inner_repair": sub.RepairSummaries(),
		"runtime_s":    seconds(out.Runtime),
	}
	if out.Objective != nil {
		details["objective"] = *out.Objective
	}
	return &Repair{Action: "template_rebuild", Details: details}, nil
}
