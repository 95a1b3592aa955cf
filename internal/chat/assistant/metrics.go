package assistant

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Neruzzz/toolchat/internal/httpx"
	"github.com/Neruzzz/toolchat/internal/tools"
)

type loopMetrics struct {
	calls      metric.Int64Counter
	duration   metric.Float64Histogram
	exhaustion metric.Int64Counter
}

// newLoopMetrics registers the loop instruments on the global meter. With
// no provider installed they are no-ops.
func newLoopMetrics() *loopMetrics {
	m := httpx.Meter()
	calls, _ := m.Int64Counter("toolchat.tool_calls",
		metric.WithDescription("Tool invocations dispatched by the tool-call loop"))
	duration, _ := m.Float64Histogram("toolchat.tool_call.duration",
		metric.WithDescription("Tool invocation latency"), metric.WithUnit("ms"))
	exhaustion, _ := m.Int64Counter("toolchat.loop_exhausted",
		metric.WithDescription("Submits stopped at the tool call ceiling"))
	return &loopMetrics{calls: calls, duration: duration, exhaustion: exhaustion}
}

func (m *loopMetrics) record(ctx context.Context, res tools.Result, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool", res.Name),
		attribute.Bool("error", res.IsError),
		attribute.String("reason", string(res.Reason)),
	)
	if m.calls != nil {
		m.calls.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(d.Microseconds())/1000, attrs)
	}
}

func (m *loopMetrics) exhausted(ctx context.Context) {
	if m.exhaustion != nil {
		m.exhaustion.Add(ctx, 1)
	}
}
