package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Neruzzz/toolchat/internal/errorsx"
)

// Tool is the minimal contract every tool exposes to a model.
type Tool interface {
	Name() string                                               // exact name the model sees, e.g. "add_person"
	Description() string                                        // short description for the model
	ParametersSchema() map[string]any                           // JSON schema (object) of the arguments
	Call(ctx context.Context, args map[string]any) (any, error) // execution
}

// Descriptor is the immutable, model-facing view of a tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Call is a model's request to run one tool.
type Call struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Result is the textual outcome of a Call. Failures are results too.
type Result struct {
	CallID  string             `json:"call_id,omitempty"`
	Name    string             `json:"name"`
	Content string             `json:"content"`
	IsError bool               `json:"is_error,omitempty"`
	Reason  errorsx.ReasonCode `json:"-"`
}

var ErrDuplicateTool = errors.New("tool already registered")

// ResultError is a failure whose text is already model-facing, such as an
// error result relayed from a remote tool server. Invoke uses it verbatim.
type ResultError struct {
	Content string
	Reason  errorsx.ReasonCode
}

func (e *ResultError) Error() string { return e.Content }

// Registry maps tool names to tools. It is built once and never mutated.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds a registry from ts, keeping their order.
func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		if t == nil {
			continue
		}
		name := strings.TrimSpace(t.Name())
		if name == "" {
			return nil, errors.New("tool name is empty")
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// MustRegistry is NewRegistry for statically known tool sets.
func MustRegistry(ts ...Tool) *Registry {
	r, err := NewRegistry(ts...)
	if err != nil {
		panic(err)
	}
	return r
}

// All returns the registered tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// FindByName returns the tool registered under name, or nil.
func (r *Registry) FindByName(name string) Tool {
	if r == nil {
		return nil
	}
	return r.tools[name]
}

// Descriptors returns the model-facing descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, t := range r.All() {
		out = append(out, Describe(t))
	}
	return out
}

// Describe builds the Descriptor of t.
func Describe(t Tool) Descriptor {
	return Descriptor{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.ParametersSchema(),
	}
}

// Invoke runs call against the registry. It never fails: a missing tool,
// invalid arguments, an error or a panic all come back as an error Result
// so the model can recover on its next turn.
func (r *Registry) Invoke(ctx context.Context, call Call) (res Result) {
	res = Result{CallID: call.ID, Name: call.Name}

	t := r.FindByName(call.Name)
	if t == nil {
		res.Content = fmt.Sprintf("Tool %s not found.", call.Name)
		res.IsError = true
		res.Reason = errorsx.ReasonToolNotFound
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "Tool panicked", "name", call.Name, "panic", p)
			res.Content = fmt.Sprintf("Error executing tool: %v", p)
			res.IsError = true
			res.Reason = errorsx.ReasonToolExec
		}
	}()

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	out, err := t.Call(ctx, args)
	if err != nil {
		res.Content = "Error executing tool: " + err.Error()
		res.IsError = true
		res.Reason = errorsx.Reason(err)
		var re *ResultError
		if errors.As(err, &re) {
			res.Content = re.Content
			res.Reason = re.Reason
		}
		if res.Reason == errorsx.ReasonUnknown {
			res.Reason = errorsx.ReasonToolExec
		}
		return res
	}
	res.Content = Stringify(out)
	return res
}
