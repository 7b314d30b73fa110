package llm

import (
	"context"
	"errors"
	"time"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request.
type Request struct {
	Messages    []Message     `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// Oracle answers chat requests with reply text.
type Oracle interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

var (
	// ErrEmptyReply is returned when the provider answered without text.
	ErrEmptyReply = errors.New("llm: empty reply")

	// ErrNoMessages is returned for a request without messages.
	ErrNoMessages = errors.New("llm: request has no messages")
)

// withTimeout applies the request timeout, if any.
func withTimeout(ctx context.Context, req Request) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		return context.WithTimeout(ctx, req.Timeout)
	}
	return context.WithCancel(ctx)
}

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }
