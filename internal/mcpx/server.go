// Package mcpx exposes a tool registry over the Model Context Protocol and
// turns the tools of a remote MCP server back into local tools.
package mcpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Neruzzz/toolchat/internal/httpx"
	"github.com/Neruzzz/toolchat/internal/tools"
)

const Version = "0.1.0"

// Endpoint is the path the streamable HTTP handler is mounted on.
const Endpoint = "/mcp"

// NewServer registers every tool of reg on a new MCP server named name.
func NewServer(name string, reg *tools.Registry) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: Version}, nil)
	for _, t := range reg.All() {
		server.AddTool(&mcp.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.ParametersSchema(),
		}, handler(reg, t.Name()))
	}
	return server
}

func handler(reg *tools.Registry, name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if raw := req.Params.Arguments; len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return textResult(fmt.Sprintf("Error executing tool: invalid arguments: %v", err), true), nil
			}
		}
		if args == nil {
			args = map[string]any{}
		}

		res := reg.Invoke(ctx, tools.Call{Name: name, Args: args})
		slog.InfoContext(ctx, "Tool call served", "name", name, "is_error", res.IsError)
		return textResult(res.Content, res.IsError), nil
	}
}

func textResult(text string, isErr bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isErr,
	}
}

// Handler serves server over streamable HTTP at Endpoint, with the request
// logging, recovery and metrics middleware.
func Handler(server *mcp.Server) http.Handler {
	r := mux.NewRouter()
	r.Use(
		httpx.Logger(),
		httpx.Recovery(),
	)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "ok")
	})

	stream := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	r.PathPrefix(Endpoint).Handler(otelhttp.NewHandler(httpx.MetricsMiddleware(stream), "mcp"))
	return r
}

// ServeStdio runs server over stdin/stdout until ctx is done or the peer
// disconnects.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
