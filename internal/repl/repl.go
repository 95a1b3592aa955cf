// Package repl is the terminal front-end: it reads user lines, feeds them
// through the assistant and prints the replies.
package repl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/dimiro1/banner"

	"github.com/Neruzzz/toolchat/internal/chat"
	"github.com/Neruzzz/toolchat/internal/chat/assistant"
	"github.com/Neruzzz/toolchat/internal/tools"
)

var ExitWords = []string{"exit", "quit", "q", "bye"}

const rule = "----------------------------------------------------------------------"

type Options struct {
	Prompt      string
	ReplyPrefix string
	Goodbye     string
	// Separator prints a horizontal rule after each reply.
	Separator bool
}

func (o Options) withDefaults() Options {
	if o.Prompt == "" {
		o.Prompt = "You: "
	}
	if o.ReplyPrefix == "" {
		o.ReplyPrefix = "AI: "
	}
	if o.Goodbye == "" {
		o.Goodbye = "👋 Goodbye!"
	}
	return o
}

type REPL struct {
	assistant *assistant.Assistant
	session   *chat.Session
	in        io.Reader
	out       io.Writer
	opts      Options
}

func New(a *assistant.Assistant, s *chat.Session, in io.Reader, out io.Writer, opts Options) *REPL {
	return &REPL{assistant: a, session: s, in: in, out: out, opts: opts.withDefaults()}
}

// Run loops until an exit word, end of input or ctx is done. Errors from a
// single turn are printed and the loop goes on.
func (r *REPL) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(r.out, r.opts.Prompt)

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintf(r.out, "\n\n%s\n", r.opts.Goodbye)
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintf(r.out, "\n%s\n", r.opts.Goodbye)
			return nil
		}

		text := strings.TrimSpace(line)
		if IsExit(text) {
			fmt.Fprintf(r.out, "\n%s\n", r.opts.Goodbye)
			return nil
		}
		if text == "" {
			continue
		}

		reply, err := r.assistant.Submit(ctx, r.session, text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			slog.ErrorContext(ctx, "Turn failed", "error", err)
			fmt.Fprintf(r.out, "\n❌ Error: %v\n💡 Try rephrasing your request or check the server connection\n\n", err)
			continue
		}

		fmt.Fprintf(r.out, "\n%s%s\n", r.opts.ReplyPrefix, reply.Text)
		if r.opts.Separator {
			fmt.Fprintf(r.out, "\n%s\n\n", rule)
		}
	}
}

// IsExit reports whether text is one of the exit words.
func IsExit(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, w := range ExitWords {
		if t == w {
			return true
		}
	}
	return false
}

// Banner prints title in large letters followed by the subtitle lines.
func Banner(w io.Writer, title string, lines ...string) {
	tpl := fmt.Sprintf("{{ .Title %q \"\" 0 }}\n", title)
	for _, l := range lines {
		tpl += l + "\n"
	}
	banner.Init(w, true, false, bytes.NewBufferString(tpl))
}

// ListTools prints the tools as a numbered list with descriptions.
func ListTools(w io.Writer, ts []tools.Tool) {
	for i, t := range ts {
		fmt.Fprintf(w, "   %d. %s\n      → %s\n", i+1, t.Name(), t.Description())
	}
}

// Printer is an observer that narrates tool calls on w.
type Printer struct {
	W io.Writer
	// Preview caps the printed result length.
	Preview int
}

func (p Printer) OnToolCall(_ context.Context, call tools.Call) {
	fmt.Fprintf(p.W, "🔧 Calling tool: %s\n", call.Name)
	if len(call.Args) == 0 {
		return
	}
	keys := make([]string, 0, len(call.Args))
	for k := range call.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, call.Args[k])
	}
	fmt.Fprintf(p.W, "   With: %s\n", strings.Join(parts, ", "))
}

func (p Printer) OnToolResult(_ context.Context, res tools.Result) {
	n := p.Preview
	if n <= 0 {
		n = 100
	}
	preview := res.Content
	if r := []rune(preview); len(r) > n {
		preview = string(r[:n]) + "..."
	}
	fmt.Fprintf(p.W, "✅ Result: %s\n\n", preview)
}
