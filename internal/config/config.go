package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/nlopt/internal/adapter"
	"github.com/roach88/nlopt/internal/llm"
	"github.com/roach88/nlopt/internal/pipeline"
	"github.com/roach88/nlopt/internal/solver"
	"github.com/roach88/nlopt/internal/verifier"
)

// Config is the full nlopt configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Solver   SolverConfig   `yaml:"solver"`
	Verifier VerifierConfig `yaml:"verifier"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Store    StoreConfig    `yaml:"store"`
}

// LLMConfig selects and tunes the oracle.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SolverConfig selects and tunes the solver backend.
type SolverConfig struct {
	Backend   string        `yaml:"backend"`
	TimeLimit time.Duration `yaml:"time_limit"`
	NodeLimit int           `yaml:"node_limit"`
}

// VerifierConfig mirrors verifier.Config.
type VerifierConfig struct {
	Layer1          bool          `yaml:"layer1"`
	Layer2          bool          `yaml:"layer2"`
	Layer3          bool          `yaml:"layer3"`
	Repairs         bool          `yaml:"repairs"`
	MaxUnroll       int           `yaml:"max_unroll"`
	RescueThreshold float64       `yaml:"rescue_threshold"`
	RescueTimeLimit time.Duration `yaml:"rescue_time_limit"`
}

// PipelineConfig tunes runs.
type PipelineConfig struct {
	Estimator           bool    `yaml:"estimator"`
	EstimatorConfidence float64 `yaml:"estimator_confidence"`
	DescriptionLimit    int     `yaml:"description_limit"`
	Concurrency         int     `yaml:"concurrency"`
}

// StoreConfig locates the run database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Environment variables read by Load.
const (
	EnvAPIKey   = "NLOPT_API_KEY"
	EnvProvider = "NLOPT_PROVIDER"
	EnvModel    = "NLOPT_MODEL"
	EnvBaseURL  = "NLOPT_BASE_URL"
	EnvDB       = "NLOPT_DB"
)

// SolverSimplex is the only built-in backend.
const SolverSimplex = "simplex"

// Default returns the built-in configuration.
func Default() *Config {
	vc := verifier.DefaultConfig()
	return &Config{
		LLM: LLMConfig{
			Provider: llm.ProviderOpenAI,
			Timeout:  2 * time.Minute,
		},
		Solver: SolverConfig{
			Backend:   SolverSimplex,
			TimeLimit: pipeline.DefaultTimeLimit,
			NodeLimit: solver.DefaultNodeLimit,
		},
		Verifier: VerifierConfig{
			Layer1:          vc.Layer1,
			Layer2:          vc.Layer2,
			Layer3:          vc.Layer3,
			Repairs:         vc.Repairs,
			MaxUnroll:       vc.MaxUnroll,
			RescueThreshold: vc.RescueThreshold,
			RescueTimeLimit: vc.RescueTimeLimit,
		},
		Pipeline: PipelineConfig{
			EstimatorConfidence: pipeline.DefaultEstimatorConfidence,
			DescriptionLimit:    adapter.DefaultDescriptionLimit,
			Concurrency:         4,
		},
		Store: StoreConfig{
			Path: "nlopt.db",
		},
	}
}

// Load reads .env, then the YAML file at path (skipped when path is
// empty), then the environment, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays YAML onto c. Unknown keys are rejected.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvProvider); v != "" {
		c.LLM.Provider = v
	}
	if v := getenv(EnvModel); v != "" {
		c.LLM.Model = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.LLM.BaseURL = v
	}
	if v := getenv(EnvDB); v != "" {
		c.Store.Path = v
	}
	if v := getenv(EnvAPIKey); v != "" {
		c.LLM.APIKey = v
	}
	if c.LLM.APIKey != "" {
		return
	}
	switch c.LLM.Provider {
	case llm.ProviderOpenAI:
		c.LLM.APIKey = getenv("OPENAI_API_KEY")
	case llm.ProviderGemini:
		c.LLM.APIKey = getenv("GEMINI_API_KEY")
	}
}

// Validate checks ranges and names. It reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(llm.KnownProvider(c.LLM.Provider), "llm.provider: unsupported provider %q", c.LLM.Provider)
	check(c.LLM.Temperature >= 0 && c.LLM.Temperature <= 2, "llm.temperature: %g is outside [0, 2]", c.LLM.Temperature)
	check(c.LLM.MaxTokens >= 0, "llm.max_tokens: must not be negative")
	check(c.LLM.Timeout >= 0, "llm.timeout: must not be negative")
	check(c.Solver.Backend == SolverSimplex, "solver.backend: unsupported backend %q", c.Solver.Backend)
	check(c.Solver.TimeLimit > 0, "solver.time_limit: must be positive")
	check(c.Solver.NodeLimit >= 0, "solver.node_limit: must not be negative")
	check(c.Verifier.MaxUnroll > 0, "verifier.max_unroll: must be positive")
	check(c.Verifier.RescueThreshold > 0 && c.Verifier.RescueThreshold <= 1,
		"verifier.rescue_threshold: %g is outside (0, 1]", c.Verifier.RescueThreshold)
	check(c.Verifier.RescueTimeLimit > 0, "verifier.rescue_time_limit: must be positive")
	check(c.Pipeline.EstimatorConfidence > 0 && c.Pipeline.EstimatorConfidence <= 1,
		"pipeline.estimator_confidence: %g is outside (0, 1]", c.Pipeline.EstimatorConfidence)
	check(c.Pipeline.DescriptionLimit > 0, "pipeline.description_limit: must be positive")
	check(c.Pipeline.Concurrency > 0, "pipeline.concurrency: must be positive")

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// VerifierConfig converts the verifier section. Rebuilder and Backend are
// left for the pipeline to fill.
func (c *Config) VerifierConfig(logger *slog.Logger) verifier.Config {
	return verifier.Config{
		Layer1:          c.Verifier.Layer1,
		Layer2:          c.Verifier.Layer2,
		Layer3:          c.Verifier.Layer3,
		Repairs:         c.Verifier.Repairs,
		MaxUnroll:       c.Verifier.MaxUnroll,
		RescueThreshold: c.Verifier.RescueThreshold,
		RescueTimeLimit: c.Verifier.RescueTimeLimit,
		Logger:          logger,
	}
}

// LLMOptions converts the llm section into oracle factory options.
func (c *Config) LLMOptions(logger *slog.Logger) llm.Options {
	return llm.Options{
		Provider: c.LLM.Provider,
		Model:    c.LLM.Model,
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
		Logger:   logger,
	}
}

// AdapterOptions converts the call settings for the adapter.
func (c *Config) AdapterOptions(logger *slog.Logger) adapter.Options {
	return adapter.Options{
		Temperature:      c.LLM.Temperature,
		MaxTokens:        c.LLM.MaxTokens,
		Timeout:          c.LLM.Timeout,
		DescriptionLimit: c.Pipeline.DescriptionLimit,
		Logger:           logger,
	}
}

// Backend builds the configured solver backend.
func (c *Config) Backend(logger *slog.Logger) solver.Backend {
	return &solver.Simplex{NodeLimit: c.Solver.NodeLimit, Logger: logger}
}

// PipelineOptions converts the solver, verifier and pipeline sections.
func (c *Config) PipelineOptions(logger *slog.Logger) []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithVerifier(c.VerifierConfig(logger)),
		pipeline.WithTimeLimit(c.Solver.TimeLimit),
		pipeline.WithLogger(logger),
	}
	if c.Pipeline.Estimator {
		opts = append(opts, pipeline.WithEstimator(c.Pipeline.EstimatorConfidence))
	}
	return opts
}
