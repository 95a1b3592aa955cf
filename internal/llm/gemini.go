package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Neruzzz/toolchat/internal/chat/model"
	"github.com/Neruzzz/toolchat/internal/tools"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini talks to Google's Generative Language API.
type Gemini struct {
	client *genai.Client
	model  string
}

// GeminiAPIKey returns GOOGLE_API_KEY, falling back to GEMINI_API_KEY.
func GeminiAPIKey() string {
	if k := os.Getenv("GOOGLE_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("GEMINI_API_KEY")
}

func NewGemini(ctx context.Context, apiKey, modelName string, opts ...option.ClientOption) (*Gemini, error) {
	if apiKey == "" {
		apiKey = GeminiAPIKey()
	}
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &Gemini{client: client, model: modelName}, nil
}

func (g *Gemini) Close() error { return g.client.Close() }

func (g *Gemini) Generate(ctx context.Context, req Request) (Response, error) {
	if len(req.Messages) == 0 {
		return Response{}, errors.New("gemini: no messages")
	}

	gm := g.client.GenerativeModel(g.model)
	if s := strings.TrimSpace(req.System); s != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(s)}}
	}
	if req.Temperature != nil {
		gm.SetTemperature(float32(*req.Temperature))
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, d := range req.Tools {
			fd := &genai.FunctionDeclaration{Name: d.Name, Description: d.Description}
			// Gemini rejects OBJECT parameters without properties.
			if params := GeminiSchema(d.Parameters); params != nil && len(params.Properties) > 0 {
				fd.Parameters = params
			}
			decls = append(decls, fd)
		}
		gm.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	history := geminiContents(req.Messages)
	last := history[len(history)-1]

	cs := gm.StartChat()
	cs.History = history[:len(history)-1]
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, ErrEmptyResponse
	}

	var out Response
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.FunctionCall:
			if out.ToolCall == nil {
				out.ToolCall = &tools.Call{Name: p.Name, Args: p.Args}
			}
		case genai.Text:
			text.WriteString(string(p))
		}
	}
	out.Text = text.String()
	return out, nil
}

// geminiContents maps the conversation onto alternating user/model turns.
// Tool results travel as function responses in a user turn.
func geminiContents(msgs []*model.Message) []*genai.Content {
	var out []*genai.Content
	for _, m := range msgs {
		c := &genai.Content{}
		switch m.Role {
		case model.RoleUser:
			c.Role = "user"
			c.Parts = []genai.Part{genai.Text(m.Content)}
		case model.RoleAssistant:
			c.Role = "model"
			if m.Content != "" {
				c.Parts = append(c.Parts, genai.Text(m.Content))
			}
			if m.ToolCall != nil {
				c.Parts = append(c.Parts, genai.FunctionCall{Name: m.ToolCall.Name, Args: m.ToolCall.Args})
			}
		case model.RoleTool:
			c.Role = "user"
			name := ""
			if m.ToolResult != nil {
				name = m.ToolResult.Name
			}
			c.Parts = []genai.Part{genai.FunctionResponse{
				Name:     name,
				Response: map[string]any{"result": m.Content},
			}}
		default:
			continue
		}
		if len(c.Parts) == 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}
