package sandbox

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Neruzzz/toolchat/internal/errorsx"
)

// Policy is a static check applied to code before it runs.
type Policy struct {
	// Deny lists substrings that must not appear in the code.
	Deny []string
	// AllowedImports, when set, is the closed set of top-level modules the
	// code may import.
	AllowedImports []string
	MaxCodeBytes   int
}

// PythonPlotPolicy admits data-fetching and plotting scripts and rejects
// process, shell, dynamic-evaluation and raw-socket access.
func PythonPlotPolicy() Policy {
	return Policy{
		Deny: []string{
			"subprocess", "os.system", "os.popen", "os.exec", "os.spawn", "os.fork",
			"os.remove", "os.unlink", "os.rmdir", "shutil.rmtree", "pty.",
			"eval(", "exec(", "compile(", "__import__", "importlib",
			"ctypes", "socket", "open('/", "open(\"/", "sys.modules",
		},
		AllowedImports: []string{
			"yfinance", "pandas", "numpy", "matplotlib", "datetime", "math",
			"statistics", "warnings", "seaborn", "time",
		},
		MaxCodeBytes: 32 << 10,
	}
}

var importLine = regexp.MustCompile(`(?m)^\s*(?:from\s+([A-Za-z_][\w.]*)\s+import|import\s+([A-Za-z_][\w., \t]*))`)

// Check returns an ErrPolicy error listing every violation found.
func (p Policy) Check(code string) error {
	var violations []string
	if strings.TrimSpace(code) == "" {
		violations = append(violations, "empty script")
	}
	if p.MaxCodeBytes > 0 && len(code) > p.MaxCodeBytes {
		violations = append(violations, fmt.Sprintf("script is %d bytes, limit is %d", len(code), p.MaxCodeBytes))
	}
	for _, d := range p.Deny {
		if strings.Contains(code, d) {
			violations = append(violations, fmt.Sprintf("forbidden construct %q", d))
		}
	}
	if len(p.AllowedImports) > 0 {
		allowed := make(map[string]bool, len(p.AllowedImports))
		for _, m := range p.AllowedImports {
			allowed[m] = true
		}
		seen := map[string]bool{}
		for _, mod := range Imports(code) {
			if !allowed[mod] && !seen[mod] {
				seen[mod] = true
				violations = append(violations, fmt.Sprintf("import of %q is not allowed", mod))
			}
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return errorsx.Wrap(fmt.Errorf("%w: %s", ErrPolicy, strings.Join(violations, "; ")), errorsx.ReasonSandbox)
}

// Imports returns the sorted top-level modules imported by a Python script.
func Imports(code string) []string {
	set := map[string]bool{}
	for _, m := range importLine.FindAllStringSubmatch(code, -1) {
		if m[1] != "" {
			set[topLevel(m[1])] = true
			continue
		}
		for _, part := range strings.Split(m[2], ",") {
			fields := strings.Fields(part)
			if len(fields) == 0 {
				continue
			}
			set[topLevel(fields[0])] = true
		}
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func topLevel(mod string) string {
	if i := strings.IndexByte(mod, '.'); i >= 0 {
		return mod[:i]
	}
	return mod
}
