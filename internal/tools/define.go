package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/Neruzzz/toolchat/internal/errorsx"
)

// Func is the body of a typed tool.
type Func[In any] func(ctx context.Context, in In) (any, error)

// Typed is a tool whose arguments are decoded into In before the body runs.
// Field names come from `json` tags, descriptions from `jsonschema` tags, and
// fields without omitempty are required.
type Typed[In any] struct {
	name        string
	description string
	schema      map[string]any
	required    []string
	fn          Func[In]
}

// Define builds a typed tool. It panics if In cannot be described as a JSON
// schema object, which is a programming error.
func Define[In any](name, description string, fn Func[In]) *Typed[In] {
	s, err := jsonschema.For[In](nil)
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %s: %v", name, err))
	}
	raw, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema for %s: %v", name, err))
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		panic(fmt.Sprintf("tools: unmarshal schema for %s: %v", name, err))
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return &Typed[In]{
		name:        name,
		description: description,
		schema:      schema,
		required:    append([]string(nil), s.Required...),
		fn:          fn,
	}
}

func (t *Typed[In]) Name() string                     { return t.name }
func (t *Typed[In]) Description() string              { return t.description }
func (t *Typed[In]) ParametersSchema() map[string]any { return t.schema }

func (t *Typed[In]) Call(ctx context.Context, args map[string]any) (any, error) {
	in, err := Decode[In](args, t.required)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("invalid arguments for %s: %w", t.name, err), errorsx.ReasonToolArgs)
	}
	return t.fn(ctx, in)
}

// Decode validates args against the required keys and decodes them into In.
// Keys that In does not declare are rejected.
func Decode[In any](args map[string]any, required []string) (In, error) {
	var in In

	var missing []string
	for _, key := range required {
		if v, ok := args[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return in, fmt.Errorf("missing required argument(s): %s", strings.Join(missing, ", "))
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &in,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       rejectFractional,
	})
	if err != nil {
		return in, err
	}
	if err := dec.Decode(args); err != nil {
		return in, err
	}
	return in, nil
}

// rejectFractional stops mapstructure from truncating JSON numbers such as
// 1.9 into integer fields.
func rejectFractional(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	var f float64
	switch v := data.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	default:
		return data, nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("expected an integer, got %v", f)
	}
	return data, nil
}
