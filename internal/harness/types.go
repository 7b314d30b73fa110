package harness

import "github.com/roach88/nlopt/internal/pipeline"

// Result is the outcome of a scenario execution.
type Result struct {
	// Scenario is the name of the scenario that ran.
	Scenario string `json:"scenario"`

	// Pass indicates overall test success.
	// True if every expectation matched.
	Pass bool `json:"pass"`

	// Run is the pipeline result the expectations were checked against.
	Run *pipeline.Result `json:"run"`

	// Errors contains one message per failed expectation.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
