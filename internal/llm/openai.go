package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/Neruzzz/toolchat/internal/chat/model"
	"github.com/Neruzzz/toolchat/internal/tools"
)

const DefaultOpenAIModel = string(openai.ChatModelGPT4_1)

// OpenAI uses the Chat Completions API. The client reads OPENAI_API_KEY
// unless an option overrides it.
type OpenAI struct {
	cli   openai.Client
	model string
}

func NewOpenAI(modelName string, opts ...option.RequestOption) *OpenAI {
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	return &OpenAI{cli: openai.NewClient(opts...), model: modelName}
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (Response, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if s := strings.TrimSpace(req.System); s != "" {
		msgs = append(msgs, openai.SystemMessage(s))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case model.RoleAssistant:
			if m.ToolCall == nil {
				msgs = append(msgs, openai.AssistantMessage(m.Content))
				continue
			}
			args, err := json.Marshal(m.ToolCall.Args)
			if err != nil {
				return Response{}, fmt.Errorf("encode tool arguments: %w", err)
			}
			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					ToolCalls: []openai.ChatCompletionMessageToolCallUnionParam{{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: m.ToolCall.ID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      m.ToolCall.Name,
								Arguments: string(args),
							},
						},
					}},
				},
			})
		case model.RoleTool:
			id := ""
			if m.ToolResult != nil {
				id = m.ToolResult.CallID
			}
			msgs = append(msgs, openai.ToolMessage(m.Content, id))
		}
	}

	var toolDefs []openai.ChatCompletionToolUnionParam
	for _, d := range req.Tools {
		toolDefs = append(toolDefs,
			openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  d.Parameters,
			}),
		)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
		Tools:    toolDefs,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	resp, err := o.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("no choices returned by OpenAI")
	}

	message := resp.Choices[0].Message
	out := Response{Text: message.Content}
	if len(message.ToolCalls) > 0 {
		call := message.ToolCalls[0]
		var args map[string]any
		if strings.TrimSpace(call.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return Response{}, fmt.Errorf("failed to parse tool arguments: %w", err)
			}
		}
		out.ToolCall = &tools.Call{ID: call.ID, Name: call.Function.Name, Args: args}
	}
	return out, nil
}
