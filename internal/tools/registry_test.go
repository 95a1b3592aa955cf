package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Neruzzz/toolchat/internal/errorsx"
)

type echoArgs struct {
	Text  string `json:"text" jsonschema:"text to echo"`
	Times int    `json:"times,omitempty" jsonschema:"repeat count"`
}

func echoTool() Tool {
	return Define("echo", "Echo text back", func(_ context.Context, in echoArgs) (any, error) {
		n := in.Times
		if n <= 0 {
			n = 1
		}
		return strings.Repeat(in.Text, n), nil
	})
}

type funcTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (any, error)
}

func (f funcTool) Name() string                     { return f.name }
func (f funcTool) Description() string              { return "test tool" }
func (f funcTool) ParametersSchema() map[string]any { return map[string]any{"type": "object"} }
func (f funcTool) Call(ctx context.Context, args map[string]any) (any, error) {
	return f.fn(ctx, args)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(echoTool(), echoTool())
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
}

func TestRegistryKeepsOrder(t *testing.T) {
	a := funcTool{name: "zeta"}
	b := funcTool{name: "alpha"}
	r := MustRegistry(a, b, nil)

	var got []string
	for _, d := range r.Descriptors() {
		got = append(got, d.Name)
	}
	if diff := cmp.Diff([]string{"zeta", "alpha"}, got); diff != "" {
		t.Fatalf("descriptor order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"alpha", "zeta"}, r.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 tools, got %d", r.Len())
	}
}

func TestInvoke(t *testing.T) {
	r := MustRegistry(
		echoTool(),
		funcTool{name: "fails", fn: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("disk on fire")
		}},
		funcTool{name: "panics", fn: func(context.Context, map[string]any) (any, error) {
			panic("kaboom")
		}},
		funcTool{name: "numbers", fn: func(context.Context, map[string]any) (any, error) {
			return map[string]int{"count": 3}, nil
		}},
		funcTool{name: "list", fn: func(context.Context, map[string]any) (any, error) {
			return []string{"one", "two"}, nil
		}},
	)

	tests := []struct {
		name string
		call Call
		want Result
	}{
		{
			name: "success",
			call: Call{ID: "1", Name: "echo", Args: map[string]any{"text": "hi", "times": float64(2)}},
			want: Result{CallID: "1", Name: "echo", Content: "hihi"},
		},
		{
			name: "unknown tool",
			call: Call{Name: "nope"},
			want: Result{Name: "nope", Content: "Tool nope not found.", IsError: true, Reason: errorsx.ReasonToolNotFound},
		},
		{
			name: "tool error",
			call: Call{Name: "fails"},
			want: Result{Name: "fails", Content: "Error executing tool: disk on fire", IsError: true, Reason: errorsx.ReasonToolExec},
		},
		{
			name: "tool panic",
			call: Call{Name: "panics"},
			want: Result{Name: "panics", Content: "Error executing tool: kaboom", IsError: true, Reason: errorsx.ReasonToolExec},
		},
		{
			name: "non-string value",
			call: Call{Name: "numbers"},
			want: Result{Name: "numbers", Content: `{"count":3}`},
		},
		{
			name: "string list",
			call: Call{Name: "list"},
			want: Result{Name: "list", Content: "one\n\ntwo"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Invoke(context.Background(), tt.call)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Invoke mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInvokeRejectsBadArguments(t *testing.T) {
	r := MustRegistry(echoTool())

	tests := []struct {
		name    string
		args    map[string]any
		message string
	}{
		{name: "missing required", args: map[string]any{}, message: "missing required argument(s): text"},
		{name: "unknown field", args: map[string]any{"text": "x", "color": "red"}, message: "invalid keys: color"},
		{name: "fractional integer", args: map[string]any{"text": "x", "times": 1.9}, message: "expected an integer, got 1.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Invoke(context.Background(), Call{Name: "echo", Args: tt.args})
			if !got.IsError || got.Reason != errorsx.ReasonToolArgs {
				t.Fatalf("expected argument error, got %+v", got)
			}
			if !strings.Contains(got.Content, tt.message) {
				t.Fatalf("expected %q in %q", tt.message, got.Content)
			}
		})
	}
}

func TestUnavailable(t *testing.T) {
	u := Unavailable(echoTool(), "Error: echo is not configured.")
	if u.Name() != "echo" || !IsUnavailable(u) {
		t.Fatalf("unexpected stub %+v", u)
	}
	got := MustRegistry(u).Invoke(context.Background(), Call{Name: "echo", Args: map[string]any{"text": "x"}})
	if got.IsError || got.Content != "Error: echo is not configured." {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestSessionContext(t *testing.T) {
	if _, ok := SessionFromContext(context.Background()); ok {
		t.Fatalf("expected no session on a bare context")
	}
	id, ok := SessionFromContext(WithSession(context.Background(), "s-1"))
	if !ok || id != "s-1" {
		t.Fatalf("expected s-1, got %q %v", id, ok)
	}
}

func TestInvokeRelaysResultError(t *testing.T) {
	r := MustRegistry(funcTool{name: "remote", fn: func(context.Context, map[string]any) (any, error) {
		return nil, &ResultError{Content: "Error: upstream said no", Reason: errorsx.ReasonUnavailable}
	}})
	res := r.Invoke(context.Background(), Call{ID: "c1", Name: "remote"})
	want := Result{CallID: "c1", Name: "remote", Content: "Error: upstream said no", IsError: true, Reason: errorsx.ReasonUnavailable}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("Invoke mismatch (-want +got):\n%s", diff)
	}
}
