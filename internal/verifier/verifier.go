package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/solver"
)

// Defaults for Config.
const (
	DefaultMaxUnroll       = 50
	DefaultRescueThreshold = 0.75
	DefaultRescueTimeLimit = 5 * time.Second
)

// Rebuilder asks for a fresh model of the same problem under a
// type-specific instruction block. It is implemented by the NL adapter.
type Rebuilder interface {
	Rebuild(ctx context.Context, m *ir.ModelIR, t *Template) (*ir.ModelIR, error)
}

// RebuilderFunc adapts a function to Rebuilder.
type RebuilderFunc func(ctx context.Context, m *ir.ModelIR, t *Template) (*ir.ModelIR, error)

// Rebuild implements Rebuilder.
func (f RebuilderFunc) Rebuild(ctx context.Context, m *ir.ModelIR, t *Template) (*ir.ModelIR, error) {
	return f(ctx, m, t)
}

// Config selects layers and tunes rules.
type Config struct {
	Layer1  bool
	Layer2  bool
	Layer3  bool
	Repairs bool

	// MaxUnroll bounds the number of copies L1-R4 may create for one
	// constraint. Zero means DefaultMaxUnroll.
	MaxUnroll int

	// RescueThreshold is the minimum template score for L3 to fire.
	// Zero means DefaultRescueThreshold.
	RescueThreshold float64

	// RescueTimeLimit bounds each L3 solve. Zero means DefaultRescueTimeLimit.
	RescueTimeLimit time.Duration

	// Rebuilder and Backend are the L3 collaborators. L3 is skipped with a
	// note when either is nil.
	Rebuilder Rebuilder
	Backend   solver.Backend

	// Logger receives one debug record per rule. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig enables every layer with repairs on.
func DefaultConfig() Config {
	return Config{
		Layer1:          true,
		Layer2:          true,
		Layer3:          true,
		Repairs:         true,
		MaxUnroll:       DefaultMaxUnroll,
		RescueThreshold: DefaultRescueThreshold,
		RescueTimeLimit: DefaultRescueTimeLimit,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxUnroll <= 0 {
		c.MaxUnroll = DefaultMaxUnroll
	}
	if c.RescueThreshold <= 0 {
		c.RescueThreshold = DefaultRescueThreshold
	}
	if c.RescueTimeLimit <= 0 {
		c.RescueTimeLimit = DefaultRescueTimeLimit
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) enabled(l Layer) bool {
	switch l {
	case L1:
		return c.Layer1
	case L2:
		return c.Layer2
	case L3:
		return c.Layer3
	}
	return false
}

// Detection is a rule hit: the issue to report and the data Apply needs.
type Detection struct {
	Issue Issue
	Data  any
}

// Rule is one verifier check with an optional repair.
//
// Detect must not mutate m. Apply mutates m using only the detection's
// data and returns nil when there was nothing to change.
type Rule interface {
	ID() string
	Layer() Layer
	Detect(ctx context.Context, m *ir.ModelIR) (*Detection, error)
	Apply(ctx context.Context, m *ir.ModelIR, d *Detection) (*Repair, error)
}

// RejectError is returned by Apply when a repair was attempted but
// deliberately not applied. The runner records it as a note.
type RejectError struct {
	Rule   string
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Rule, e.Reason)
}

func reject(rule, format string, args ...any) error {
	return &RejectError{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// DefaultRules returns the built-in rules of every layer in declared order.
func DefaultRules(cfg Config) []Rule {
	cfg = cfg.withDefaults()
	rules := Layer1Rules(cfg)
	rules = append(rules, Layer2Rules()...)
	return append(rules, Layer3Rules(cfg)...)
}

// Run verifies m with the built-in rules. With repairs on, m is mutated
// and returned; with repairs off, the returned IR is m itself, untouched.
func Run(ctx context.Context, m *ir.ModelIR, cfg Config) (*ir.ModelIR, *Report) {
	return RunRules(ctx, m, cfg, DefaultRules(cfg))
}

// RunRules is Run with an explicit rule list. Rules of disabled layers are
// skipped; the rest run grouped by layer in list order.
func RunRules(ctx context.Context, m *ir.ModelIR, cfg Config, rules []Rule) (*ir.ModelIR, *Report) {
	cfg = cfg.withDefaults()
	report := newReport(cfg)

	work := m
	if !cfg.Repairs {
		work = m.Clone()
	}

	for _, layer := range Layers {
		if !cfg.enabled(layer) {
			continue
		}
		if layer == L3 && (cfg.Rebuilder == nil || cfg.Backend == nil) {
			report.Notes = append(report.Notes, "L3 skipped: no rebuilder or solver backend configured")
			continue
		}
		report.Layers[layer].Ran = true
		for _, rule := range rules {
			if rule.Layer() != layer {
				continue
			}
			runRule(ctx, cfg, rule, work, report)
		}
	}

	if !cfg.Repairs {
		return m, report
	}
	return work, report
}

func runRule(ctx context.Context, cfg Config, rule Rule, m *ir.ModelIR, report *Report) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			cfg.Logger.Error("verifier rule panicked",
				"rule", rule.ID(),
				"panic", r,
				"stack", string(debug.Stack()))
			exception(report, rule, fmt.Errorf("panic: %v", r))
		}
	}()

	det, err := rule.Detect(ctx, m)
	if err != nil {
		exception(report, rule, fmt.Errorf("detect: %w", err))
		return
	}
	if det == nil {
		cfg.Logger.Debug("verifier rule clean", "rule", rule.ID(), "duration", time.Since(start))
		return
	}

	issue := det.Issue
	issue.Layer = rule.Layer()
	issue.Rule = rule.ID()
	if issue.Severity == "" {
		issue.Severity = SeverityWarning
	}
	report.Issues = append(report.Issues, issue)

	if !cfg.Repairs {
		return
	}
	rep, err := rule.Apply(ctx, m, det)
	var rej *RejectError
	switch {
	case errors.As(err, &rej):
		report.Notes = append(report.Notes, rej.Error())
		return
	case err != nil:
		exception(report, rule, fmt.Errorf("apply: %w", err))
		return
	case rep == nil:
		return
	}
	rep.Layer = rule.Layer()
	rep.Rule = rule.ID()
	report.Repairs = append(report.Repairs, *rep)
	report.Layers[rule.Layer()].ChangedIR = true
	cfg.Logger.Debug("verifier rule repaired",
		"rule", rule.ID(),
		"action", rep.Action,
		"duration", time.Since(start))
}

func exception(report *Report, rule Rule, err error) {
	report.OK = false
	report.Issues = append(report.Issues, Issue{
		Layer:    rule.Layer(),
		Rule:     rule.ID(),
		Kind:     KindException,
		Severity: SeverityError,
		Message:  err.Error(),
	})
}

// rule is the shared ID/layer part of the built-in rules.
type rule struct {
	id    string
	layer Layer
}

func (r rule) ID() string   { return r.id }
func (r rule) Layer() Layer { return r.layer }
