package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Qdrant talks to a Qdrant server over its REST API.
type Qdrant struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewQdrant(baseURL, apiKey string) *Qdrant {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	return &Qdrant{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// qdrantStatus accepts both `"ok"` and `{"error":"..."}`.
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Result T            `json:"result"`
}

type qdrantHit struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func (q *Qdrant) collectionPath(name string, rest ...string) string {
	return "/collections/" + url.PathEscape(name) + strings.Join(rest, "")
}

func (q *Qdrant) EnsureCollection(ctx context.Context, name string, dim int) (bool, error) {
	status, _, err := q.do(ctx, http.MethodGet, q.collectionPath(name), nil, nil)
	if err != nil {
		return false, err
	}
	if status == http.StatusOK {
		return false, nil
	}

	req := map[string]any{"vectors": map[string]any{"size": dim, "distance": "Cosine"}}
	var env qdrantEnvelope[json.RawMessage]
	status, body, err := q.do(ctx, http.MethodPut, q.collectionPath(name), req, &env)
	if err != nil {
		return false, err
	}
	if status >= 300 {
		if strings.Contains(strings.ToLower(env.Status.Error), "already exists") {
			return false, nil
		}
		return false, q.httpError(http.MethodPut, name, status, env.Status.Error, body)
	}
	return true, nil
}

func (q *Qdrant) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	wire := make([]map[string]any, len(points))
	for i, p := range points {
		wire[i] = map[string]any{"id": p.ID, "vector": p.Vector, "payload": p.Payload}
	}
	var env qdrantEnvelope[json.RawMessage]
	status, body, err := q.do(ctx, http.MethodPut, q.collectionPath(collection, "/points")+"?wait=true", map[string]any{"points": wire}, &env)
	if err != nil {
		return err
	}
	if status >= 300 {
		return q.httpError(http.MethodPut, collection, status, env.Status.Error, body)
	}
	return nil
}

func (q *Qdrant) Count(ctx context.Context, collection string) (int, error) {
	var env qdrantEnvelope[struct {
		Count int `json:"count"`
	}]
	status, body, err := q.do(ctx, http.MethodPost, q.collectionPath(collection, "/points/count"), map[string]any{"exact": true}, &env)
	if err != nil {
		return 0, err
	}
	if status >= 300 {
		return 0, q.httpError(http.MethodPost, collection, status, env.Status.Error, body)
	}
	return env.Result.Count, nil
}

func (q *Qdrant) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var env qdrantEnvelope[[]qdrantHit]
	status, body, err := q.do(ctx, http.MethodPost, q.collectionPath(collection, "/points/search"), req, &env)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, q.httpError(http.MethodPost, collection, status, env.Status.Error, body)
	}

	hits := make([]Hit, 0, len(env.Result))
	for _, h := range env.Result {
		var id int64
		_ = json.Unmarshal(h.ID, &id)
		hits = append(hits, Hit{ID: id, Score: h.Score, Payload: h.Payload})
	}
	return hits, nil
}

func (q *Qdrant) Close() error { return nil }

func (q *Qdrant) httpError(method, collection string, status int, msg string, body []byte) error {
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return fmt.Errorf("qdrant %s %s -> http %d: %s", method, collection, status, msg)
}

// do sends body as JSON and decodes the response into out when present.
// Non-2xx statuses are returned, not treated as errors.
func (q *Qdrant) do(ctx context.Context, method, path string, body, out any) (int, []byte, error) {
	var buf io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if out != nil && len(payload) > 0 {
		_ = json.Unmarshal(payload, out)
	}
	return resp.StatusCode, payload, nil
}
