// Package websearch queries Google through SerpAPI.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Neruzzz/toolchat/internal/tools"
)

const (
	DefaultEndpoint = "https://serpapi.com/search.json"
	DefaultNum      = 5

	ToolName = "serpapi_web_search_tool"

	MissingKey = "Error: SERPAPI_API_KEY not set in environment."
	NoResults  = "No results found. This might be due to an API issue or no matches."
)

type Config struct {
	APIKey   string
	Endpoint string
	Num      int
	Timeout  time.Duration
}

type Client struct {
	apiKey   string
	endpoint string
	num      int
	http     *http.Client
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Num <= 0 {
		cfg.Num = DefaultNum
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		endpoint: cfg.Endpoint,
		num:      cfg.Num,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (r Result) String() string {
	title, link, snippet := r.Title, r.Link, r.Snippet
	if title == "" {
		title = "No Title"
	}
	if link == "" {
		link = "#"
	}
	if snippet == "" {
		snippet = "No Snippet"
	}
	return fmt.Sprintf("Title: %s\nLink: %s\nSnippet: %s", title, link, snippet)
}

// APIError is an error reported by SerpAPI in the response body.
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Search returns the organic results for query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", c.apiKey)
	q.Set("num", strconv.Itoa(c.num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	slog.InfoContext(ctx, "Web search request", "query", query, "num", c.num)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Error          string   `json:"error"`
		OrganicResults []Result `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("serpapi http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("decode error: %w", err)
	}
	if payload.Error != "" {
		return nil, &APIError{Message: payload.Error}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("serpapi http %d", resp.StatusCode)
	}
	return payload.OrganicResults, nil
}

type searchArgs struct {
	Query string `json:"query" jsonschema:"The search query"`
}

// Tool exposes c as the web search tool. Failures come back as a one-item
// list holding the error text.
func Tool(c *Client) tools.Tool {
	return tools.Define(ToolName,
		"Search for information using SerpAPI (Google Search). Use for general queries not covered by FAQ.",
		func(ctx context.Context, in searchArgs) (any, error) {
			return c.Lines(ctx, in.Query), nil
		})
}

// Lines runs Search and renders the outcome as text items.
func (c *Client) Lines(ctx context.Context, query string) []string {
	if c == nil || c.apiKey == "" {
		return []string{MissingKey}
	}
	results, err := c.Search(ctx, query)
	if err != nil {
		slog.WarnContext(ctx, "Web search failed", "error", err)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return []string{"SerpAPI Error: " + apiErr.Message}
		}
		return []string{"Error performing search: " + err.Error()}
	}
	if len(results) == 0 {
		return []string{NoResults}
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.String()
	}
	return out
}
