package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/Neruzzz/toolchat/internal/chat/model"
	"github.com/Neruzzz/toolchat/internal/tools"
)

// Model is a hosted chat model that can request tool calls.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

type Request struct {
	System      string
	Messages    []*model.Message
	Tools       []tools.Descriptor
	Temperature *float64
}

// Response is either text or a single tool call. When the provider returns
// several calls only the first one is kept.
type Response struct {
	Text     string
	ToolCall *tools.Call
}

// Empty reports whether the model produced neither text nor a tool call.
func (r Response) Empty() bool {
	return r.ToolCall == nil && strings.TrimSpace(r.Text) == ""
}

var ErrEmptyResponse = errors.New("model returned no candidates")

// Complete runs a single-turn, tool-less generation.
func Complete(ctx context.Context, m Model, system, prompt string) (string, error) {
	resp, err := m.Generate(ctx, Request{
		System:   system,
		Messages: []*model.Message{{Role: model.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func Temperature(v float64) *float64 { return &v }
