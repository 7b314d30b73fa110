package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/llm"
	"github.com/roach88/nlopt/internal/lower"
	"github.com/roach88/nlopt/internal/verifier"
)

// Options tunes LLM calls and parsing.
type Options struct {
	Temperature      float64
	MaxTokens        int
	Timeout          time.Duration
	DescriptionLimit int
	Logger           *slog.Logger
}

// Adapter drives the oracle through the NL-to-IR steps.
type Adapter struct {
	oracle llm.Oracle
	opts   Options
}

// New creates an Adapter. The zero Options mean temperature 0, no token or
// time limit and the default description limit.
func New(oracle llm.Oracle, opts Options) *Adapter {
	if opts.DescriptionLimit <= 0 {
		opts.DescriptionLimit = DefaultDescriptionLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Adapter{oracle: oracle, opts: opts}
}

// Oracle returns the oracle the adapter calls.
func (a *Adapter) Oracle() llm.Oracle { return a.oracle }

// Call sends the prompts and returns the raw reply.
func (a *Adapter) Call(ctx context.Context, p Prompts) (string, error) {
	start := time.Now()
	reply, err := a.oracle.Complete(ctx, llm.Request{
		Messages:    p.Messages(),
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
		Timeout:     a.opts.Timeout,
	})
	if err != nil {
		return "", &Error{Kind: KindLLMCall, Err: err}
	}
	a.opts.Logger.Debug("llm call",
		"oracle", a.oracle.Name(),
		"reply_bytes", len(reply),
		"duration", time.Since(start))
	return reply, nil
}

// ParseIR decodes raw and fills meta from question.
func (a *Adapter) ParseIR(raw []byte, question string) (*ir.ModelIR, error) {
	return ParseIR(raw, question, a.opts.DescriptionLimit)
}

// Translate runs every step for one question.
func (a *Adapter) Translate(ctx context.Context, question string) (*ir.ModelIR, error) {
	return a.translate(ctx, question, BuildPrompts)
}

func (a *Adapter) translate(ctx context.Context, question string, build func(string) (Prompts, error)) (*ir.ModelIR, error) {
	p, err := build(question)
	if err != nil {
		return nil, err
	}
	reply, err := a.Call(ctx, p)
	if err != nil {
		return nil, err
	}
	raw, _, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}
	return a.ParseIR(raw, question)
}

// Rebuild asks for a fresh model of question under the template's
// instructions.
func (a *Adapter) Rebuild(ctx context.Context, question string, t *verifier.Template) (*ir.ModelIR, error) {
	return a.translate(ctx, question, func(q string) (Prompts, error) {
		return RebuildPrompts(q, t)
	})
}

// Rebuilder binds Rebuild to a question for the verifier.
func (a *Adapter) Rebuilder(question string) verifier.Rebuilder {
	return verifier.RebuilderFunc(func(ctx context.Context, _ *ir.ModelIR, t *verifier.Template) (*ir.ModelIR, error) {
		return a.Rebuild(ctx, question, t)
	})
}

// SelfCheck is the estimator's verdict on a solved model.
type SelfCheck struct {
	Confidence     float64     `json:"confidence_score"`
	CorrectedModel *ir.ModelIR `json:"corrected_model,omitempty"`
	Raw            string      `json:"-"`
}

// SelfCheck asks the oracle to grade m against question. The corrected
// model may come back as a JSON object or as a string holding one.
func (a *Adapter) SelfCheck(ctx context.Context, question string, m *ir.ModelIR, out *lower.Outcome) (*SelfCheck, error) {
	p, err := SelfCheckPrompts(question, m, out)
	if err != nil {
		return nil, err
	}
	reply, err := a.Call(ctx, p)
	if err != nil {
		return nil, err
	}
	raw, _, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	var verdict struct {
		Confidence *float64        `json:"confidence_score"`
		Corrected  json.RawMessage `json:"corrected_model"`
	}
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, errorf(KindSelfCheck, "decode verdict: %v", err)
	}
	if verdict.Confidence == nil {
		return nil, errorf(KindSelfCheck, "reply has no confidence_score")
	}
	sc := &SelfCheck{Confidence: min(max(*verdict.Confidence, 0), 1), Raw: reply}

	model := bytes.TrimSpace(verdict.Corrected)
	switch {
	case len(model) == 0 || bytes.Equal(model, []byte("null")):
		return sc, nil
	case model[0] == '"':
		var text string
		if err := json.Unmarshal(model, &text); err != nil {
			return nil, errorf(KindSelfCheck, "corrected_model: %v", err)
		}
		if strings.TrimSpace(text) == "" {
			return sc, nil
		}
		if model, _, err = ExtractJSON(text); err != nil {
			return nil, errorf(KindSelfCheck, "corrected_model: %v", err)
		}
	case model[0] != '{':
		return nil, errorf(KindSelfCheck, "corrected_model is not an object")
	}

	corrected, err := a.ParseIR(model, question)
	if err != nil {
		return nil, fmt.Errorf("corrected_model: %w", err)
	}
	sc.CorrectedModel = corrected
	return sc, nil
}
