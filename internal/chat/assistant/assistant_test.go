package assistant_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Neruzzz/toolchat/internal/chat"
	"github.com/Neruzzz/toolchat/internal/chat/assistant"
	"github.com/Neruzzz/toolchat/internal/chat/model"
	"github.com/Neruzzz/toolchat/internal/errorsx"
	"github.com/Neruzzz/toolchat/internal/llm"
	"github.com/Neruzzz/toolchat/internal/tools"
)

type lookupArgs struct {
	Key string `json:"key"`
}

func testRegistry(t *testing.T, invoked *[]string) *tools.Registry {
	t.Helper()
	return tools.MustRegistry(
		tools.Define("lookup", "Look a key up", func(ctx context.Context, in lookupArgs) (any, error) {
			*invoked = append(*invoked, "lookup:"+in.Key)
			if _, ok := tools.SessionFromContext(ctx); !ok {
				t.Errorf("tool invoked without a session id in ctx")
			}
			return "value-of-" + in.Key, nil
		}),
		tools.Define("explode", "Always fails", func(context.Context, struct{}) (any, error) {
			*invoked = append(*invoked, "explode")
			return nil, errors.New("database is locked")
		}),
		tools.Define("stats", "Returns a struct", func(context.Context, struct{}) (any, error) {
			*invoked = append(*invoked, "stats")
			return struct {
				Count int `json:"count"`
			}{Count: 2}, nil
		}),
	)
}

func toolMessages(conv *model.Conversation) []string {
	var out []string
	for _, m := range conv.Messages {
		if m.Role == model.RoleTool {
			out = append(out, m.Content)
		}
	}
	return out
}

func TestSubmit_PlainText(t *testing.T) {
	var invoked []string
	s := chat.NewSession(testRegistry(t, &invoked))
	m := llm.NewScripted(llm.Text("Hello there."))

	reply, err := assistant.New(m).Submit(context.Background(), s, "hi")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if diff := cmp.Diff(assistant.Reply{Text: "Hello there."}, reply); diff != "" {
		t.Fatalf("reply mismatch (-want +got):\n%s", diff)
	}
	if len(invoked) != 0 {
		t.Fatalf("no tool should run, got %v", invoked)
	}
	if got := m.Requests[0].Tools; len(got) != 3 {
		t.Fatalf("expected 3 tool descriptors sent to the model, got %d", len(got))
	}
}

func TestSubmit_UnknownToolIsFedBack(t *testing.T) {
	var invoked []string
	s := chat.NewSession(testRegistry(t, &invoked))
	m := llm.NewScripted(
		llm.ToolCall("lookup_Schema", map[string]any{"key": "a"}),
		llm.Text("Sorry, that tool does not exist."),
	)

	reply, err := assistant.New(m).Submit(context.Background(), s, "look up a")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if reply.Text != "Sorry, that tool does not exist." || reply.ToolCalls != 1 {
		t.Fatalf("unexpected reply %+v", reply)
	}
	results := toolMessages(s.Conversation)
	if len(results) != 1 || !strings.Contains(results[0], "not found") {
		t.Fatalf("expected a not-found tool result, got %v", results)
	}
	last := m.Requests[1].Messages
	if got := last[len(last)-1]; got.Role != model.RoleTool || got.ToolResult.Reason != errorsx.ReasonToolNotFound {
		t.Fatalf("model did not receive the not-found result: %+v", got)
	}
}

func TestSubmit_ToolErrorDoesNotAbort(t *testing.T) {
	var invoked []string
	s := chat.NewSession(testRegistry(t, &invoked))
	m := llm.NewScripted(
		llm.ToolCall("explode", nil),
		llm.ToolCall("lookup", map[string]any{"key": "b"}),
		llm.Text("Recovered."),
	)

	reply, err := assistant.New(m).Submit(context.Background(), s, "do things")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if reply.Text != "Recovered." || reply.ToolCalls != 2 || reply.Exhausted {
		t.Fatalf("unexpected reply %+v", reply)
	}
	want := []string{"Error executing tool: database is locked", "value-of-b"}
	if diff := cmp.Diff(want, toolMessages(s.Conversation)); diff != "" {
		t.Fatalf("tool results mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_CeilingIsNeverExceeded(t *testing.T) {
	for _, ceiling := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("ceiling=%d", ceiling), func(t *testing.T) {
			var invoked []string
			s := chat.NewSession(testRegistry(t, &invoked))
			m := llm.NewScripted()
			m.Fallback = func(llm.Request) (llm.Response, error) {
				return llm.Response{ToolCall: &tools.Call{Name: "lookup", Args: map[string]any{"key": "loop"}}}, nil
			}

			reply, err := assistant.New(m, assistant.WithMaxToolCalls(ceiling)).Submit(context.Background(), s, "loop forever")
			if err != nil {
				t.Fatalf("Submit() error: %v", err)
			}
			if !reply.Exhausted || reply.ToolCalls != ceiling {
				t.Fatalf("expected exhaustion after %d calls, got %+v", ceiling, reply)
			}
			if len(invoked) != ceiling {
				t.Fatalf("expected %d invocations, got %d", ceiling, len(invoked))
			}
			if reply.Text != assistant.StoppedNotice(ceiling) {
				t.Fatalf("unexpected notice %q", reply.Text)
			}
			if m.Calls() != ceiling+1 {
				t.Fatalf("expected %d model calls, got %d", ceiling+1, m.Calls())
			}
		})
	}
}

func TestSubmit_AnswerAfterLastAllowedCall(t *testing.T) {
	var invoked []string
	s := chat.NewSession(testRegistry(t, &invoked))
	m := llm.NewScripted(
		llm.ToolCall("lookup", map[string]any{"key": "1"}),
		llm.ToolCall("lookup", map[string]any{"key": "2"}),
		llm.ToolCall("lookup", map[string]any{"key": "3"}),
		llm.Text("All three found."),
	)

	reply, err := assistant.New(m).Submit(context.Background(), s, "three lookups")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if reply.Exhausted || reply.Text != "All three found." || reply.ToolCalls != assistant.DefaultMaxToolCalls {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if diff := cmp.Diff([]string{"lookup:1", "lookup:2", "lookup:3"}, invoked); diff != "" {
		t.Fatalf("invocation order mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_ResultsKeepRequestOrder(t *testing.T) {
	var invoked []string
	s := chat.NewSession(testRegistry(t, &invoked))
	m := llm.NewScripted(
		llm.ToolCall("stats", nil),
		llm.ToolCall("lookup", map[string]any{"key": "z"}),
		llm.Text("done"),
	)

	var events []string
	obs := assistant.ObserverFuncs{
		ToolCall:   func(_ context.Context, c tools.Call) { events = append(events, "call:"+c.Name) },
		ToolResult: func(_ context.Context, r tools.Result) { events = append(events, "result:"+r.Name) },
	}
	if _, err := assistant.New(m, assistant.WithObserver(obs)).Submit(context.Background(), s, "go"); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	var roles []model.Role
	for _, msg := range s.Conversation.Messages {
		roles = append(roles, msg.Role)
	}
	wantRoles := []model.Role{
		model.RoleUser,
		model.RoleAssistant, model.RoleTool,
		model.RoleAssistant, model.RoleTool,
		model.RoleAssistant,
	}
	if diff := cmp.Diff(wantRoles, roles); diff != "" {
		t.Fatalf("turn order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`{"count":2}`, "value-of-z"}, toolMessages(s.Conversation)); diff != "" {
		t.Fatalf("non-string results must be coerced (-want +got):\n%s", diff)
	}
	wantEvents := []string{"call:stats", "result:stats", "call:lookup", "result:lookup"}
	if diff := cmp.Diff(wantEvents, events); diff != "" {
		t.Fatalf("observer events mismatch (-want +got):\n%s", diff)
	}

	ids := map[string]bool{}
	for _, msg := range s.Conversation.Messages {
		if msg.ToolCall != nil {
			if msg.ToolCall.ID == "" || ids[msg.ToolCall.ID] {
				t.Fatalf("tool call ids must be unique and non-empty: %q", msg.ToolCall.ID)
			}
			ids[msg.ToolCall.ID] = true
		}
	}
}

func TestSubmit_MalformedOutput(t *testing.T) {
	s := chat.NewSession(tools.MustRegistry())
	m := llm.NewScripted(llm.Step{Response: llm.Response{}})

	reply, err := assistant.New(m).Submit(context.Background(), s, "hi")
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if reply.Text != assistant.NonTextNotice || !reply.Malformed {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestSubmit_ModelErrorKeepsSession(t *testing.T) {
	s := chat.NewSession(tools.MustRegistry())
	m := llm.NewScripted(
		llm.Step{Err: errors.New("503 from upstream")},
		llm.Text("back online"),
	)
	a := assistant.New(m)

	_, err := a.Submit(context.Background(), s, "first")
	if !errorsx.HasReason(err, errorsx.ReasonModelGenerate) {
		t.Fatalf("expected model_generate error, got %v", err)
	}
	if n := s.Conversation.Len(); n != 0 {
		t.Fatalf("failed turn left %d messages behind", n)
	}
	reply, err := a.Submit(context.Background(), s, "second")
	if err != nil || reply.Text != "back online" {
		t.Fatalf("session should keep working, got %+v %v", reply, err)
	}
}

func TestSubmit_ModelErrorAfterToolCallRollsBack(t *testing.T) {
	var invoked []string
	s := chat.NewSession(testRegistry(t, &invoked))
	m := llm.NewScripted(
		llm.Text("hello"),
		llm.ToolCall("lookup", map[string]any{"key": "a"}),
		llm.Step{Err: errors.New("connection reset")},
		llm.Text("done"),
	)
	a := assistant.New(m)
	ctx := context.Background()

	if _, err := a.Submit(ctx, s, "hi"); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := a.Submit(ctx, s, "look up a"); !errorsx.HasReason(err, errorsx.ReasonModelGenerate) {
		t.Fatalf("expected model_generate error, got %v", err)
	}
	if _, err := a.Submit(ctx, s, "try again"); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}

	var roles []model.Role
	for _, msg := range s.Conversation.Messages {
		roles = append(roles, msg.Role)
	}
	want := []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser, model.RoleAssistant}
	if diff := cmp.Diff(want, roles); diff != "" {
		t.Errorf("roles mismatch (-want +got):\n%s", diff)
	}
	if got := s.Conversation.Messages[2].Content; got != "try again" {
		t.Errorf("third turn = %q, want the retried message", got)
	}
}

func TestSubmit_ClosedSession(t *testing.T) {
	s := chat.NewSession(tools.MustRegistry())
	_ = s.Close()
	_, err := assistant.New(llm.NewScripted()).Submit(context.Background(), s, "hi")
	if !errors.Is(err, chat.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	a := assistant.New(llm.NewScripted(llm.Text(" Ready.\n")))
	got, err := a.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error: %v", err)
	}
	if got != "Ready" {
		t.Fatalf("Probe() = %q, want %q", got, "Ready")
	}

	if _, err := assistant.New(llm.NewScripted(llm.Text(""))).Probe(context.Background()); err == nil {
		t.Fatalf("expected an error for an empty probe answer")
	}
}
