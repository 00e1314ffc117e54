// Package llmtest provides a scripted llm.Provider for tests
package llmtest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ppiankov/factcheck/internal/llm"
)

// Reply is one scripted answer
type Reply struct {
	Content string
	Err     error
}

// Stub answers requests from a script or a responder function
type Stub struct {
	// Respond, when set, computes the reply for every request
	Respond func(req llm.Request) (string, error)

	mu       sync.Mutex
	script   []Reply
	requests []llm.Request
	calls    atomic.Int64
}

// New returns a stub that replays replies in order and repeats the last one
func New(replies ...Reply) *Stub {
	return &Stub{script: replies}
}

// Text returns a stub answering every request with content
func Text(content string) *Stub {
	return New(Reply{Content: content})
}

// Routed returns a stub choosing the reply by the first key found in the prompt
func Routed(routes map[string]string) *Stub {
	return &Stub{Respond: func(req llm.Request) (string, error) {
		for key, reply := range routes {
			if strings.Contains(req.Prompt, key) {
				return reply, nil
			}
		}
		return "", llm.ErrEmptyResponse
	}}
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) IsAvailable(ctx context.Context) bool { return true }

func (s *Stub) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.calls.Add(1)

	s.mu.Lock()
	s.requests = append(s.requests, req)
	var reply Reply
	switch {
	case s.Respond != nil:
		s.mu.Unlock()
		content, err := s.Respond(req)
		reply = Reply{Content: content, Err: err}
	case len(s.script) == 0:
		s.mu.Unlock()
		reply = Reply{Err: llm.ErrEmptyResponse}
	default:
		reply = s.script[0]
		if len(s.script) > 1 {
			s.script = s.script[1:]
		}
		s.mu.Unlock()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &llm.Response{Content: reply.Content, Model: "stub-model", TokensIn: len(req.Prompt) / 4, TokensOut: len(reply.Content) / 4}, nil
}

// Calls returns how many requests were made
func (s *Stub) Calls() int { return int(s.calls.Load()) }

// Requests returns a copy of the requests received
func (s *Stub) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.requests...)
}
