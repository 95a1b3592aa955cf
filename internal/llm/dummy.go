package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Neruzzz/toolchat/internal/chat/model"
)

// Dummy answers with the last user line and never calls tools. Useful for
// local runs without API calls.
type Dummy struct {
	Prefix string
}

func NewDummy(prefix string) *Dummy {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &Dummy{Prefix: prefix}
}

func (d *Dummy) Generate(_ context.Context, req Request) (Response, error) {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		m := req.Messages[i]
		if m.Role == model.RoleUser || m.Role == model.RoleTool {
			last = lastLine(m.Content)
			break
		}
	}
	if last == "" {
		last = "<empty prompt>"
	}
	return Response{Text: fmt.Sprintf("%s %s", d.Prefix, last)}, nil
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if c := strings.TrimSpace(lines[i]); c != "" {
			return c
		}
	}
	return ""
}

var _ Model = (*Dummy)(nil)
