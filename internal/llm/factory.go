package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// DefaultOllamaModel is used for the ollama provider when Options.Model is
// empty.
const DefaultOllamaModel = "llama3.1"

// Options selects and configures a provider.
type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Logger   *slog.Logger
}

// New creates the oracle named by opts.Provider. The "ollama" provider is
// the OpenAI client pointed at a local server.
func New(ctx context.Context, opts Options) (Oracle, error) {
	switch normalizeProvider(opts.Provider) {
	case ProviderOpenAI:
		if opts.APIKey == "" && opts.BaseURL == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAI(opts.APIKey, opts.Model, opts.BaseURL, opts.Logger), nil
	case ProviderOllama:
		base := opts.BaseURL
		if base == "" {
			base = "http://localhost:11434/v1"
		}
		model := opts.Model
		if model == "" {
			model = DefaultOllamaModel
		}
		return NewOpenAI("ollama", model, base, opts.Logger), nil
	case ProviderGemini:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		return NewGemini(ctx, opts.APIKey, opts.Model, opts.Logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", opts.Provider)
	}
}

// KnownProvider reports whether New accepts name. Empty means openai.
func KnownProvider(name string) bool {
	switch normalizeProvider(name) {
	case ProviderOpenAI, ProviderOllama, ProviderGemini:
		return true
	}
	return false
}

func normalizeProvider(name string) string {
	p := strings.ToLower(strings.TrimSpace(name))
	if p == "" {
		return ProviderOpenAI
	}
	return p
}
