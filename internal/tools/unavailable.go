package tools

import "context"

type unavailable struct {
	name        string
	description string
	schema      map[string]any
	message     string
}

// Unavailable keeps t's name and schema but answers every call with msg.
// It stands in for tools whose dependencies failed to initialize.
func Unavailable(t Tool, msg string) Tool {
	return &unavailable{
		name:        t.Name(),
		description: t.Description(),
		schema:      t.ParametersSchema(),
		message:     msg,
	}
}

func (u *unavailable) Name() string                     { return u.name }
func (u *unavailable) Description() string              { return u.description }
func (u *unavailable) ParametersSchema() map[string]any { return u.schema }

func (u *unavailable) Call(context.Context, map[string]any) (any, error) {
	return u.message, nil
}

// IsUnavailable reports whether t was built by Unavailable.
func IsUnavailable(t Tool) bool {
	_, ok := t.(*unavailable)
	return ok
}
