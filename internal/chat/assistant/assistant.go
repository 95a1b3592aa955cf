package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Neruzzz/toolchat/internal/chat"
	"github.com/Neruzzz/toolchat/internal/chat/model"
	"github.com/Neruzzz/toolchat/internal/errorsx"
	"github.com/Neruzzz/toolchat/internal/llm"
	"github.com/Neruzzz/toolchat/internal/tools"
)

const (
	DefaultMaxToolCalls = 3

	NonTextNotice = "[Model returned non-text response]"

	DefaultSystemPrompt = "You are a helpful assistant. Use the provided tools to answer user questions. " +
		"When a tool returns information, use it to construct your response. " +
		"Do not call the same tool with the same arguments multiple times in a row."
)

// StoppedNotice is the reply given when the model keeps asking for tools
// after n calls.
func StoppedNotice(n int) string {
	return fmt.Sprintf("[Stopped after %d tool calls to prevent infinite loop]", n)
}

type Assistant struct {
	model        llm.Model
	system       string
	maxToolCalls int
	temperature  *float64
	observers    []Observer
	metrics      *loopMetrics
}

type Option func(*Assistant)

// WithMaxToolCalls sets the per-Submit tool invocation ceiling. Values
// below 1 keep the default.
func WithMaxToolCalls(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxToolCalls = n
		}
	}
}

func WithSystemPrompt(s string) Option {
	return func(a *Assistant) {
		if strings.TrimSpace(s) != "" {
			a.system = s
		}
	}
}

func WithTemperature(t float64) Option {
	return func(a *Assistant) { a.temperature = &t }
}

func WithObserver(o Observer) Option {
	return func(a *Assistant) {
		if o != nil {
			a.observers = append(a.observers, o)
		}
	}
}

func New(m llm.Model, opts ...Option) *Assistant {
	a := &Assistant{
		model:        m,
		system:       DefaultSystemPrompt,
		maxToolCalls: DefaultMaxToolCalls,
		metrics:      newLoopMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// MaxToolCalls reports the configured ceiling.
func (a *Assistant) MaxToolCalls() int { return a.maxToolCalls }

// Reply is the outcome of one Submit.
type Reply struct {
	Text      string
	ToolCalls int
	// Exhausted is set when the loop stopped at the ceiling instead of
	// receiving a final answer.
	Exhausted bool
	// Malformed is set when the model returned neither text nor a tool call.
	Malformed bool
}

// Submit appends text to the session's conversation and runs the tool-call
// loop until the model answers in text or the ceiling is reached. Tool
// failures never abort the loop; only model transport errors are returned,
// and they roll the conversation back to where it stood before text.
func (a *Assistant) Submit(ctx context.Context, s *chat.Session, text string) (Reply, error) {
	if s == nil || s.Closed() {
		return Reply{}, chat.ErrSessionClosed
	}
	if strings.TrimSpace(text) == "" {
		return Reply{}, errors.New("empty message")
	}

	conv := s.Conversation
	base := conv.Len()
	conv.AddUser(text)
	ctx = s.Context(ctx)
	slog.InfoContext(ctx, "Generating reply for conversation", "conversation_id", conv.ID, "max_tool_calls", a.maxToolCalls)

	var descriptors []tools.Descriptor
	if s.Registry != nil {
		descriptors = s.Registry.Descriptors()
	}

	var reply Reply
	for {
		resp, err := a.model.Generate(ctx, llm.Request{
			System:      a.system,
			Messages:    conv.Messages,
			Tools:       descriptors,
			Temperature: a.temperature,
		})
		if err != nil {
			conv.Truncate(base)
			slog.WarnContext(ctx, "Model call failed, turn discarded", "conversation_id", conv.ID, "error", err)
			return reply, errorsx.Wrap(fmt.Errorf("generate reply: %w", err), errorsx.ReasonModelGenerate)
		}

		if resp.ToolCall == nil {
			reply.Text = resp.Text
			if strings.TrimSpace(resp.Text) == "" {
				reply.Text = NonTextNotice
				reply.Malformed = true
				slog.WarnContext(ctx, "Model returned no text and no tool call", "conversation_id", conv.ID)
			}
			conv.AddAssistant(reply.Text)
			return reply, nil
		}

		if reply.ToolCalls >= a.maxToolCalls {
			reply.Text = StoppedNotice(reply.ToolCalls)
			reply.Exhausted = true
			conv.AddAssistant(reply.Text)
			a.metrics.exhausted(ctx)
			slog.WarnContext(ctx, "Tool call ceiling reached", "conversation_id", conv.ID, "tool_calls", reply.ToolCalls, "pending", resp.ToolCall.Name)
			return reply, nil
		}

		reply.ToolCalls++
		call := *resp.ToolCall
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d", conv.Len())
		}
		conv.AddToolCall(resp.Text, call)
		slog.InfoContext(ctx, "Tool call received", "name", call.Name, "args", call.Args)
		a.notifyCall(ctx, call)

		start := time.Now()
		res := s.Registry.Invoke(ctx, call)
		a.metrics.record(ctx, res, time.Since(start))
		if res.IsError {
			slog.WarnContext(ctx, "Tool call failed", "name", call.Name, "reason", res.Reason)
		}
		a.notifyResult(ctx, res)
		conv.AddToolResult(res)
	}
}

func (a *Assistant) notifyCall(ctx context.Context, call tools.Call) {
	for _, o := range a.observers {
		o.OnToolCall(ctx, call)
	}
}

func (a *Assistant) notifyResult(ctx context.Context, res tools.Result) {
	for _, o := range a.observers {
		o.OnToolResult(ctx, res)
	}
}

// Probe checks that the model answers at all. It is run once before an
// interactive session starts.
func (a *Assistant) Probe(ctx context.Context) (string, error) {
	slog.InfoContext(ctx, "Probing model connectivity")

	conv := model.NewConversation()
	conv.AddUser("Say 'ready' in one word")
	resp, err := a.model.Generate(ctx, llm.Request{Messages: conv.Messages})
	if err != nil {
		return "", errorsx.Wrap(fmt.Errorf("probe: %w", err), errorsx.ReasonModelGenerate)
	}

	answer := strings.ReplaceAll(resp.Text, "\n", " ")
	answer = strings.Trim(answer, " \t\r\n-\"'.")
	if answer == "" {
		return "", errorsx.Wrap(errors.New("probe: model returned an empty answer"), errorsx.ReasonModelGenerate)
	}
	if len(answer) > 80 {
		answer = answer[:80]
	}
	return answer, nil
}
