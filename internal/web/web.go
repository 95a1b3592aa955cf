// Package web serves the financial analyst form: a query box, the analysis
// result with its plot, and a story explaining the query in plain words.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Neruzzz/toolchat/internal/finance"
	"github.com/Neruzzz/toolchat/internal/httpx"
)

//go:embed templates/*.html
var templateFS embed.FS

var page = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const (
	TabAnalysis = "analysis"
	TabStory    = "story"

	recentRuns = 10
)

// Analyst is the part of finance.Analyst the form needs.
type Analyst interface {
	Analyze(ctx context.Context, query string) string
	PlotPath() string
	ScriptPath() string
	Runs() finance.RunLog
}

type Storyteller interface {
	Tell(ctx context.Context, query string) finance.Story
}

type Server struct {
	analyst Analyst
	stories Storyteller
	// missing holds a configuration problem shown instead of the form.
	missing string
}

type Option func(*Server)

// WithConfigError makes every page show msg and refuse to analyze.
func WithConfigError(msg string) Option {
	return func(s *Server) { s.missing = msg }
}

func NewServer(a Analyst, st Storyteller, opts ...Option) *Server {
	s := &Server{analyst: a, stories: st}
	for _, o := range opts {
		o(s)
	}
	return s
}

// view is the template data for index.html.
type view struct {
	ConfigError string
	Warning     string
	Query       string
	Tab         string
	Message     string
	Code        string
	HasResult   bool
	PlotURL     string
	Story       *finance.Story
	Runs        []finance.Run
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(httpx.Logger(), httpx.Recovery())

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	app := r.NewRoute().Subrouter()
	app.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(httpx.MetricsMiddleware(next), "web.finance")
	})
	app.HandleFunc("/", s.index).Methods(http.MethodGet)
	app.HandleFunc("/analyze", s.analyze).Methods(http.MethodPost)
	app.HandleFunc("/story", s.story).Methods(http.MethodPost)
	app.HandleFunc("/artifacts/plot.png", s.serveFile(s.analyst.PlotPath, "image/png")).Methods(http.MethodGet)
	app.HandleFunc("/artifacts/script.py", s.serveFile(s.analyst.ScriptPath, "text/x-python; charset=utf-8")).Methods(http.MethodGet)
	app.HandleFunc("/api/runs", s.runs).Methods(http.MethodGet)
	return r
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, view{Query: r.URL.Query().Get("q"), Tab: TabAnalysis})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.FormValue("query"))
	v := view{Query: query, Tab: TabAnalysis}
	switch {
	case s.missing != "":
	case query == "":
		v.Warning = "Please enter a query."
	default:
		slog.InfoContext(r.Context(), "Analysis requested", "query", query)
		v.HasResult = true
		v.Message, v.Code = SplitResult(s.analyst.Analyze(r.Context(), query))
	}
	s.render(w, r, v)
}

func (s *Server) story(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.FormValue("query"))
	v := view{Query: query, Tab: TabStory}
	switch {
	case s.missing != "":
	case query == "":
		v.Warning = "Please enter a query."
	default:
		st := s.stories.Tell(r.Context(), query)
		v.Story = &st
	}
	s.render(w, r, v)
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	n := recentRuns
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		n = v
	}
	list, err := s.analyst.Runs().Recent(r.Context(), n)
	if err != nil {
		slog.ErrorContext(r.Context(), "Could not list runs", "error", err)
		http.Error(w, "could not list runs", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []finance.Run{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (s *Server) serveFile(path func() string, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(path())
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(data)
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, v view) {
	v.ConfigError = s.missing
	if v.HasResult {
		if info, err := os.Stat(s.analyst.PlotPath()); err == nil {
			v.PlotURL = "/artifacts/plot.png?v=" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
		}
	}
	if runs, err := s.analyst.Runs().Recent(r.Context(), recentRuns); err == nil {
		v.Runs = runs
	} else {
		slog.WarnContext(r.Context(), "Could not list runs", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, v); err != nil {
		slog.ErrorContext(r.Context(), "Could not render page", "error", err)
	}
}

// SplitResult separates an analysis message from its "Generated Code:"
// section and strips the code fences.
func SplitResult(result string) (message, code string) {
	msg, rest, ok := strings.Cut(result, "Generated Code:")
	if !ok {
		return strings.TrimSpace(result), ""
	}
	code = strings.ReplaceAll(rest, "```python", "")
	code = strings.ReplaceAll(code, "```", "")
	return strings.TrimSpace(msg), strings.TrimSpace(code)
}
