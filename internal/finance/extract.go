package finance

import (
	"regexp"
	"strings"
)

var (
	pythonBlock = regexp.MustCompile("(?s)```python(.*?)```")
	anyBlock    = regexp.MustCompile("(?s)```(.*?)```")
)

// ExtractCode returns the body of the first ```python fenced block in out,
// falling back to the first bare ``` block. Text outside a fence is never
// treated as code.
func ExtractCode(out string) (string, bool) {
	m := pythonBlock.FindStringSubmatch(out)
	if m == nil {
		m = anyBlock.FindStringSubmatch(out)
	}
	if m == nil {
		return "", false
	}
	code := strings.TrimSpace(m[1])
	if code == "" {
		return "", false
	}
	return code, true
}
