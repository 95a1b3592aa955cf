package mcpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Neruzzz/toolchat/internal/errorsx"
	"github.com/Neruzzz/toolchat/internal/tools"
)

// Client is a connected MCP session.
type Client struct {
	session *mcp.ClientSession
}

// Transport builds a client transport from target. An http(s) URL selects
// streamable HTTP; anything else is a command line to launch over stdio.
func Transport(ctx context.Context, target string) (mcp.Transport, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("mcp target is empty")
	}
	lowered := strings.ToLower(target)
	if strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://") {
		u, err := url.Parse(target)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid mcp endpoint %q", target)
		}
		if u.Path == "" || u.Path == "/" {
			u.Path = Endpoint
		}
		return &mcp.StreamableClientTransport{Endpoint: u.String()}, nil
	}

	parts := strings.Fields(target)
	// #nosec G204 -- the command comes from local configuration
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	return &mcp.CommandTransport{Command: cmd}, nil
}

// Dial connects to target, see Transport.
func Dial(ctx context.Context, name, target string) (*Client, error) {
	t, err := Transport(ctx, target)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonUnavailable)
	}
	return Connect(ctx, name, t)
}

// Connect opens a session over t.
func Connect(ctx context.Context, name string, t mcp.Transport) (*Client, error) {
	c := mcp.NewClient(&mcp.Implementation{Name: name, Version: Version}, nil)
	session, err := c.Connect(ctx, t, nil)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("connect to tool server: %w", err), errorsx.ReasonUnavailable)
	}
	return &Client{session: session}, nil
}

// Tools lists the server's tools and wraps each one as a local tool.
func (c *Client) Tools(ctx context.Context) ([]tools.Tool, error) {
	var out []tools.Tool
	for t, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("list tools: %w", err), errorsx.ReasonUnavailable)
		}
		out = append(out, &remoteTool{session: c.session, name: t.Name, description: t.Description, schema: schemaMap(t.InputSchema)})
	}
	return out, nil
}

func (c *Client) Close() error {
	if c == nil || c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

type remoteTool struct {
	session     *mcp.ClientSession
	name        string
	description string
	schema      map[string]any
}

func (r *remoteTool) Name() string                     { return r.name }
func (r *remoteTool) Description() string              { return r.description }
func (r *remoteTool) ParametersSchema() map[string]any { return r.schema }

func (r *remoteTool) Call(ctx context.Context, args map[string]any) (any, error) {
	res, err := r.session.CallTool(ctx, &mcp.CallToolParams{Name: r.name, Arguments: args})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonToolExec)
	}
	text := contentText(res.Content)
	if res.IsError {
		return nil, &tools.ResultError{Content: text, Reason: errorsx.ReasonToolExec}
	}
	return text, nil
}

func contentText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// schemaMap normalizes whatever the SDK decoded the input schema into.
func schemaMap(schema any) map[string]any {
	out := map[string]any{}
	switch s := schema.(type) {
	case map[string]any:
		out = s
	case nil:
	default:
		raw, err := json.Marshal(s)
		if err == nil {
			_ = json.Unmarshal(raw, &out)
		}
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}
	return out
}
