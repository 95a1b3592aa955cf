package assistant

import (
	"context"
	"log/slog"

	"github.com/Neruzzz/toolchat/internal/tools"
)

// Observer is told about every tool call the loop dispatches, in order.
type Observer interface {
	OnToolCall(ctx context.Context, call tools.Call)
	OnToolResult(ctx context.Context, res tools.Result)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	ToolCall   func(ctx context.Context, call tools.Call)
	ToolResult func(ctx context.Context, res tools.Result)
}

func (f ObserverFuncs) OnToolCall(ctx context.Context, call tools.Call) {
	if f.ToolCall != nil {
		f.ToolCall(ctx, call)
	}
}

func (f ObserverFuncs) OnToolResult(ctx context.Context, res tools.Result) {
	if f.ToolResult != nil {
		f.ToolResult(ctx, res)
	}
}

// LogObserver writes tool events to slog at debug level.
type LogObserver struct{}

func (LogObserver) OnToolCall(ctx context.Context, call tools.Call) {
	slog.DebugContext(ctx, "Tool dispatched", "id", call.ID, "name", call.Name)
}

func (LogObserver) OnToolResult(ctx context.Context, res tools.Result) {
	slog.DebugContext(ctx, "Tool finished", "id", res.CallID, "name", res.Name, "error", res.IsError, "bytes", len(res.Content))
}
