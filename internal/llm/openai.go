package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when Options.Model is empty.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI is an Oracle backed by the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI oracle. A non-empty baseURL points the
// client at a compatible server.
func NewOpenAI(apiKey, model, baseURL string, logger *slog.Logger) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

// Name implements Oracle.
func (o *OpenAI) Name() string { return "openai:" + o.model }

// Complete implements Oracle.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", ErrNoMessages
	}
	ctx, cancel := withTimeout(ctx, req)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		msgs[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}

	temp := float32(req.Temperature)
	if temp == 0 {
		// The client drops a zero temperature from the payload.
		temp = math.SmallestNonzeroFloat32
	}
	creq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: temp,
	}
	if req.MaxTokens > 0 {
		creq.MaxTokens = req.MaxTokens
	}

	o.logger.Debug("llm request", "provider", "openai", "model", o.model, "messages", len(msgs))
	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyReply
	}
	o.logger.Debug("llm reply",
		"provider", "openai",
		"finish_reason", resp.Choices[0].FinishReason,
		"tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
