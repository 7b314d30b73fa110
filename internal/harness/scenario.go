package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/pipeline"
	"github.com/roach88/nlopt/internal/testutil"
)

// Scenario defines an end-to-end pipeline scenario.
// A scenario feeds one model through the pipeline, either as the oracle's
// reply to a question or as a ready-made fixture, and asserts on the
// solved result and the final IR.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Question is the natural-language problem. Required with Reply.
	Question string `yaml:"question,omitempty"`

	// Reply is the scripted oracle answer to Question. It is passed through
	// JSON extraction and IR parsing exactly like a live reply.
	Reply string `yaml:"reply,omitempty"`

	// Fixture names a built-in model (see Fixtures). The model skips the
	// oracle stages and enters the pipeline at the verifier.
	Fixture string `yaml:"fixture,omitempty"`

	// Verifier selects layers. Nil means L1 and L2 with repairs on.
	Verifier *Switches `yaml:"verifier,omitempty"`

	// Expect is checked against the result.
	Expect Expect `yaml:"expect"`
}

// Switches toggles verifier layers for one scenario.
type Switches struct {
	Layer1  bool `yaml:"layer1"`
	Layer2  bool `yaml:"layer2"`
	Layer3  bool `yaml:"layer3"`
	Repairs bool `yaml:"repairs"`
}

// Expect lists the outcome a scenario requires. Empty fields are not
// checked.
type Expect struct {
	// Status is the solver status name, e.g. "OPTIMAL".
	Status string `yaml:"status,omitempty"`

	// Objective is compared within Tolerance (DefaultTolerance when zero).
	Objective *float64 `yaml:"objective,omitempty"`
	Tolerance float64  `yaml:"tolerance,omitempty"`

	// FailureStage is the stage an unsolved run must stop at.
	FailureStage string `yaml:"failure_stage,omitempty"`

	// Constraints is the exact list of final constraint names, in order.
	Constraints []string `yaml:"constraints,omitempty"`

	// Senses maps constraint names to their final relation.
	Senses map[string]string `yaml:"senses,omitempty"`

	// Params are single entries that must be present in the final IR.
	Params []ParamEntry `yaml:"params,omitempty"`

	// Repairs and Issues are rule IDs that must appear in the report.
	Repairs []string `yaml:"repairs,omitempty"`
	Issues  []string `yaml:"issues,omitempty"`

	// NoRepairs requires an untouched IR.
	NoRepairs bool `yaml:"no_repairs,omitempty"`

	// Golden compares the canonical final IR with testdata/golden/<name>.golden.
	Golden bool `yaml:"golden,omitempty"`
}

// ParamEntry is one parameter value addressed by its keys. Scalars have
// no keys.
type ParamEntry struct {
	Name  string   `yaml:"name"`
	Key   []string `yaml:"key,omitempty"`
	Value float64  `yaml:"value"`
}

// DefaultTolerance is the objective tolerance when Expect.Tolerance is zero.
const DefaultTolerance = 1e-6

// Fixtures are the models a scenario can name with the fixture field.
var Fixtures = map[string]func() *ir.ModelIR{
	"knapsack":   testutil.Knapsack,
	"assignment": testutil.Assignment,
	"max_flow":   testutil.MaxFlow,
	"unroll":     testutil.Unroll,
	"diagonal":   testutil.DiagonalFill,
	"direction":  testutil.Direction,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if prev, ok := names[s.Name]; ok {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(path), s.Name, prev)
		}
		names[s.Name] = filepath.Base(path)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Reply != "" && s.Fixture != "":
		return fmt.Errorf("reply and fixture are mutually exclusive")
	case s.Reply != "":
		if strings.TrimSpace(s.Question) == "" {
			return fmt.Errorf("question is required with reply")
		}
	case s.Fixture != "":
		if _, ok := Fixtures[s.Fixture]; !ok {
			return fmt.Errorf("unknown fixture %q", s.Fixture)
		}
	default:
		return fmt.Errorf("one of reply or fixture is required")
	}

	return validateExpect(&s.Expect)
}

func validateExpect(e *Expect) error {
	if e.Tolerance < 0 {
		return fmt.Errorf("expect.tolerance must be non-negative")
	}
	if e.FailureStage != "" {
		if !slices.Contains(pipeline.Stages, pipeline.Stage(e.FailureStage)) {
			return fmt.Errorf("expect.failure_stage: unknown stage %q", e.FailureStage)
		}
		if e.Objective != nil {
			return fmt.Errorf("expect.objective cannot be set with failure_stage")
		}
	}
	for name, sense := range e.Senses {
		if !ir.ConSense(sense).Valid() {
			return fmt.Errorf("expect.senses[%s]: %q is not <=, >= or ==", name, sense)
		}
	}
	for i, p := range e.Params {
		if p.Name == "" {
			return fmt.Errorf("expect.params[%d]: name is required", i)
		}
		if len(p.Key) > 2 {
			return fmt.Errorf("expect.params[%d]: at most two keys", i)
		}
	}
	if e.NoRepairs && len(e.Repairs) > 0 {
		return fmt.Errorf("expect.no_repairs conflicts with expect.repairs")
	}
	return nil
}

// switches returns the verifier toggles with the scenario default applied.
func (s *Scenario) switches() Switches {
	if s.Verifier == nil {
		return Switches{Layer1: true, Layer2: true, Repairs: true}
	}
	return *s.Verifier
}
