package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Neruzzz/toolchat/internal/chat/model"
	"github.com/Neruzzz/toolchat/internal/tools"
)

const DefaultAnthropicModel = "claude-3-5-sonnet-latest"

// Anthropic uses the Messages API. The client reads ANTHROPIC_API_KEY
// unless an option overrides it.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropic(modelName string, opts ...anthropicopt.RequestOption) *Anthropic {
	if modelName == "" {
		modelName = DefaultAnthropicModel
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     modelName,
		maxTokens: 1024,
	}
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  anthropicMessages(req.Messages),
	}
	if s := strings.TrimSpace(req.System); s != "" {
		params.System = []anthropic.TextBlockParam{{Text: s}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	for _, d := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: anthropicSchema(d.Parameters),
		}})
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, err
	}

	var out Response
	var text strings.Builder
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			if out.ToolCall != nil {
				continue
			}
			var args map[string]any
			if raw := v.JSON.Input.Raw(); raw != "" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					return Response{}, fmt.Errorf("failed to parse tool input: %w", err)
				}
			}
			out.ToolCall = &tools.Call{ID: v.ID, Name: v.Name, Args: args}
		}
	}
	out.Text = text.String()
	return out, nil
}

// anthropicMessages keeps each tool_use and its tool_result adjacent.
func anthropicMessages(msgs []*model.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case model.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			if m.ToolCall != nil {
				args := m.ToolCall.Args
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    m.ToolCall.ID,
					Name:  m.ToolCall.Name,
					Input: args,
				}})
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case model.RoleTool:
			id, isErr := "", false
			if m.ToolResult != nil {
				id, isErr = m.ToolResult.CallID, m.ToolResult.IsError
			}
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(id, m.Content, isErr)))
		}
	}
	return out
}

func anthropicSchema(m map[string]any) anthropic.ToolInputSchemaParam {
	s := anthropic.ToolInputSchemaParam{Properties: m["properties"]}
	switch req := m["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	return s
}
