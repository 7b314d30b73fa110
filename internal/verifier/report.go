package verifier

import (
	"fmt"
	"time"
)

// Layer names a rule group.
type Layer string

const (
	L1 Layer = "L1"
	L2 Layer = "L2"
	L3 Layer = "L3"
)

// Layers lists the layers in execution order.
var Layers = []Layer{L1, L2, L3}

// Severity grades an issue.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// KindException marks an issue raised for a failing rule.
const KindException = "verifier_exception"

// Issue is one finding of a rule.
type Issue struct {
	Layer    Layer          `json:"layer"`
	Rule     string         `json:"rule"`
	Kind     string         `json:"kind"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

// Repair records one mutation applied to the IR.
type Repair struct {
	Layer   Layer          `json:"layer"`
	Rule    string         `json:"rule"`
	Action  string         `json:"action"`
	Details map[string]any `json:"details,omitempty"`
}

// LayerStatus tells whether a layer ran and whether it changed the IR.
type LayerStatus struct {
	Ran       bool `json:"ran"`
	ChangedIR bool `json:"changed_ir"`
}

// ConfigSnapshot is the configuration echoed in a report.
type ConfigSnapshot struct {
	Layer1          bool    `json:"layer1_on"`
	Layer2          bool    `json:"layer2_on"`
	Layer3          bool    `json:"layer3_on"`
	Repairs         bool    `json:"repairs_on"`
	MaxUnroll       int     `json:"max_unroll"`
	RescueThreshold float64 `json:"rescue_threshold"`
	RescueTimeLimit float64 `json:"rescue_time_limit_s"`
}

// Report is the outcome of one verifier run.
type Report struct {
	OK        bool                   `json:"ok"`
	Config    ConfigSnapshot         `json:"config"`
	Layers    map[Layer]*LayerStatus `json:"layers"`
	RepairsOn bool                   `json:"repairs_on"`
	Issues    []Issue                `json:"issues"`
	Repairs   []Repair               `json:"repairs"`
	Notes     []string               `json:"notes"`
}

func newReport(cfg Config) *Report {
	return &Report{
		OK: true,
		Config: ConfigSnapshot{
			Layer1:          cfg.Layer1,
			Layer2:          cfg.Layer2,
			Layer3:          cfg.Layer3,
			Repairs:         cfg.Repairs,
			MaxUnroll:       cfg.MaxUnroll,
			RescueThreshold: cfg.RescueThreshold,
			RescueTimeLimit: cfg.RescueTimeLimit.Seconds(),
		},
		Layers: map[Layer]*LayerStatus{
			L1: {},
			L2: {},
			L3: {},
		},
		RepairsOn: cfg.Repairs,
		Issues:    []Issue{},
		Repairs:   []Repair{},
		Notes:     []string{},
	}
}

// ChangedIR reports whether any layer mutated the IR.
func (r *Report) ChangedIR() bool {
	for _, st := range r.Layers {
		if st.ChangedIR {
			return true
		}
	}
	return false
}

// IssueSummaries renders issues as one short line each.
func (r *Report) IssueSummaries() []string {
	out := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		out[i] = fmt.Sprintf("%s %s: %s", is.Rule, is.Kind, is.Message)
	}
	return out
}

// RepairSummaries renders repairs as one short line each.
func (r *Report) RepairSummaries() []string {
	out := make([]string, len(r.Repairs))
	for i, rep := range r.Repairs {
		out[i] = fmt.Sprintf("%s %s", rep.Rule, rep.Action)
	}
	return out
}

// RepairsBy returns the repairs recorded by rule.
func (r *Report) RepairsBy(rule string) []Repair {
	var out []Repair
	for _, rep := range r.Repairs {
		if rep.Rule == rule {
			out = append(out, rep)
		}
	}
	return out
}

// IssuesBy returns the issues recorded by rule.
func (r *Report) IssuesBy(rule string) []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Rule == rule {
			out = append(out, is)
		}
	}
	return out
}

// seconds converts a duration for JSON evidence.
func seconds(d time.Duration) float64 {
	return d.Seconds()
}
