package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned once a Scripted oracle has no replies left.
var ErrScriptExhausted = errors.New("llm: scripted replies exhausted")

// Scripted replays canned replies in order. A Reply with Err set fails
// that call instead.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	requests []Request
}

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// NewScripted creates an oracle answering with texts in order.
func NewScripted(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Push appends replies to the script.
func (s *Scripted) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Name implements Oracle.
func (s *Scripted) Name() string { return "scripted" }

// Complete implements Oracle.
func (s *Scripted) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return "", ErrScriptExhausted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}

// Requests returns the requests seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Remaining returns the number of unused replies.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}
