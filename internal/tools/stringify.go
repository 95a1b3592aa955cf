package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Stringify renders a tool's return value as the text handed back to the
// model. Lists of strings are joined by blank lines.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		return strings.Join(x, "\n\n")
	case []byte:
		return string(x)
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
