package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/Neruzzz/toolchat/internal/tools"
)

// Step is one scripted model turn.
type Step struct {
	Response Response
	Err      error
}

// Scripted replays canned responses in order and records every request.
// It is meant for tests and offline demos.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	next     int
	Requests []Request
	// Fallback is used once the script runs out. If nil, running out is an error.
	Fallback func(req Request) (Response, error)
}

func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Text is a Step answering with plain text.
func Text(s string) Step { return Step{Response: Response{Text: s}} }

func (s *Scripted) Generate(_ context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Requests = append(s.Requests, req)
	if s.next >= len(s.steps) {
		if s.Fallback != nil {
			return s.Fallback(req)
		}
		return Response{}, fmt.Errorf("scripted model: no step %d", s.next+1)
	}
	step := s.steps[s.next]
	s.next++
	return step.Response, step.Err
}

// Calls reports how many times Generate ran.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

// ToolCall is a Step requesting one tool.
func ToolCall(name string, args map[string]any) Step {
	return Step{Response: Response{ToolCall: &tools.Call{Name: name, Args: args}}}
}
