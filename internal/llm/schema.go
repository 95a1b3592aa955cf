package llm

import (
	genai "github.com/google/generative-ai-go/genai"
)

// GeminiSchema converts a JSON schema object into the subset Gemini accepts.
// Nullable unions such as ["null","integer"] become a nullable integer.
func GeminiSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}

	typ, nullable := schemaType(m["type"])
	s.Type = typ
	s.Nullable = nullable

	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if f, ok := m["format"].(string); ok && (f == "enum" || f == "date-time" || f == "int32" || f == "int64" || f == "float" || f == "double") {
		s.Format = f
	}
	if enum, ok := m["enum"].([]any); ok {
		for _, e := range enum {
			if str, ok := e.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if pm, ok := raw.(map[string]any); ok {
				s.Properties[name] = GeminiSchema(pm)
			}
		}
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	} else if req, ok := m["required"].([]string); ok {
		s.Required = append(s.Required, req...)
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = GeminiSchema(items)
	}
	if s.Type == genai.TypeUnspecified && s.Properties != nil {
		s.Type = genai.TypeObject
	}
	return s
}

func schemaType(v any) (genai.Type, bool) {
	switch t := v.(type) {
	case string:
		return geminiType(t), false
	case []any:
		var typ genai.Type
		nullable := false
		for _, x := range t {
			name, _ := x.(string)
			if name == "null" {
				nullable = true
				continue
			}
			if typ == genai.TypeUnspecified {
				typ = geminiType(name)
			}
		}
		return typ, nullable
	case []string:
		anyList := make([]any, len(t))
		for i, x := range t {
			anyList[i] = x
		}
		return schemaType(anyList)
	}
	return genai.TypeUnspecified, false
}

func geminiType(name string) genai.Type {
	switch name {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	return genai.TypeUnspecified
}
