package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(t.TempDir())

	created, err := l.EnsureCollection(ctx, "faq", 2)
	if err != nil || !created {
		t.Fatalf("first EnsureCollection = %v, %v; want created", created, err)
	}
	created, err = l.EnsureCollection(ctx, "faq", 2)
	if err != nil || created {
		t.Fatalf("second EnsureCollection = %v, %v; want existing", created, err)
	}
	if _, err := l.EnsureCollection(ctx, "faq", 3); !errors.Is(err, ErrDimension) {
		t.Errorf("dimension change: err = %v", err)
	}

	points := []Point{
		{ID: 0, Vector: []float32{1, 0}, Payload: map[string]any{"text": "east"}},
		{ID: 1, Vector: []float32{0, 1}, Payload: map[string]any{"text": "north"}},
		{ID: 2, Vector: []float32{0.7, 0.7}, Payload: map[string]any{"text": "north-east"}},
	}
	if n, err := l.Count(ctx, "faq"); err != nil || n != 0 {
		t.Fatalf("Count before Upsert = %d, %v; want 0", n, err)
	}
	if err := l.Upsert(ctx, "faq", points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := l.Upsert(ctx, "faq", points[:1]); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}
	if n, err := l.Count(ctx, "faq"); err != nil || n != len(points) {
		t.Errorf("Count = %d, %v; want %d", n, err, len(points))
	}

	hits, err := l.Search(ctx, "faq", []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	var got []string
	for _, h := range hits {
		got = append(got, h.Text())
	}
	if diff := cmp.Diff([]string{"east", "north-east"}, got); diff != "" {
		t.Errorf("Search order mismatch (-want +got):\n%s", diff)
	}

	if _, err := l.Search(ctx, "faq", []float32{1, 0, 0}, 2); !errors.Is(err, ErrDimension) {
		t.Errorf("bad query dim: err = %v", err)
	}
}

type fakeQdrant struct {
	mu         sync.Mutex
	exists     bool
	points     []map[string]any
	apiKeySeen string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeySeen = r.Header.Get("api-key")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections/faq":
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":{"error":"Not found: Collection faq doesn't exist!"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","result":{}}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/faq":
		f.exists = true
		_, _ = w.Write([]byte(`{"status":"ok","result":true}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/faq/points":
		var body struct {
			Points []map[string]any `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.points = append(f.points, body.Points...)
		_, _ = w.Write([]byte(`{"status":"ok","result":{"status":"completed"}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/faq/points/count":
		_, _ = fmt.Fprintf(w, `{"status":"ok","result":{"count":%d}}`, len(f.points))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/faq/points/search":
		_, _ = w.Write([]byte(`{"status":"ok","result":[{"id":3,"score":0.9,"payload":{"text":"deep"}},{"id":1,"score":0.5,"payload":{"text":"supervised"}}]}`))
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":{"error":"bad request"}}`))
	}
}

func TestQdrant(t *testing.T) {
	ctx := context.Background()
	fake := &fakeQdrant{}
	ts := httptest.NewServer(fake)
	defer ts.Close()

	q := NewQdrant(ts.URL+"/", "secret")
	created, err := q.EnsureCollection(ctx, "faq", 384)
	if err != nil || !created {
		t.Fatalf("EnsureCollection = %v, %v", created, err)
	}
	created, err = q.EnsureCollection(ctx, "faq", 384)
	if err != nil || created {
		t.Fatalf("second EnsureCollection = %v, %v", created, err)
	}

	if err := q.Upsert(ctx, "faq", []Point{{ID: 7, Vector: []float32{0.5}, Payload: map[string]any{"text": "x"}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(fake.points) != 1 || fake.points[0]["id"] != float64(7) {
		t.Errorf("points = %v", fake.points)
	}
	if n, err := q.Count(ctx, "faq"); err != nil || n != 1 {
		t.Errorf("Count = %d, %v; want 1", n, err)
	}
	if fake.apiKeySeen != "secret" {
		t.Errorf("api-key header = %q", fake.apiKeySeen)
	}

	hits, err := q.Search(ctx, "faq", []float32{0.5}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []Hit{
		{ID: 3, Score: 0.9, Payload: map[string]any{"text": "deep"}},
		{ID: 1, Score: 0.5, Payload: map[string]any{"text": "supervised"}},
	}
	if diff := cmp.Diff(want, hits); diff != "" {
		t.Errorf("Search mismatch (-want +got):\n%s", diff)
	}

	if _, err := q.Search(ctx, "other", []float32{0.5}, 2); err == nil {
		t.Error("Search on unknown collection succeeded")
	}
}
