package model

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Neruzzz/toolchat/internal/tools"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation. Assistant turns that request a
// tool carry ToolCall; tool turns carry ToolResult.
type Message struct {
	Role       Role
	Content    string
	ToolCall   *tools.Call
	ToolResult *tools.Result
	CreatedAt  time.Time
}

// Conversation is the ordered turn history of one session.
type Conversation struct {
	ID       uuid.UUID
	Messages []*Message
}

func NewConversation() *Conversation {
	return &Conversation{ID: uuid.New()}
}

func (c *Conversation) AddUser(text string) *Message {
	return c.add(&Message{Role: RoleUser, Content: text})
}

func (c *Conversation) AddAssistant(text string) *Message {
	return c.add(&Message{Role: RoleAssistant, Content: text})
}

// AddToolCall records the model's request to run call.
func (c *Conversation) AddToolCall(text string, call tools.Call) *Message {
	return c.add(&Message{Role: RoleAssistant, Content: text, ToolCall: &call})
}

// AddToolResult records the outcome of the most recent tool call.
func (c *Conversation) AddToolResult(res tools.Result) *Message {
	return c.add(&Message{Role: RoleTool, Content: res.Content, ToolResult: &res})
}

func (c *Conversation) add(m *Message) *Message {
	m.CreatedAt = time.Now().UTC()
	c.Messages = append(c.Messages, m)
	return m
}

// Len reports the number of turns.
func (c *Conversation) Len() int { return len(c.Messages) }

// FirstUserMessage returns the first non-empty user turn, if any.
func (c *Conversation) FirstUserMessage() string {
	for _, m := range c.Messages {
		if m.Role == RoleUser && m.Content != "" {
			return m.Content
		}
	}
	return ""
}

// Truncate drops every turn after the first n. Later appends never write
// into the dropped turns' backing array.
func (c *Conversation) Truncate(n int) {
	if n < 0 || n >= len(c.Messages) {
		return
	}
	c.Messages = slices.Clip(c.Messages[:n])
}

// Reset drops all turns but keeps the id.
func (c *Conversation) Reset() {
	c.Messages = nil
}
