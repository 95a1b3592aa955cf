package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func TestRecovery_ReturnsInternalServerError(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Logger(), Recovery())
	r.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestMetricsMiddleware_PassesThrough(t *testing.T) {
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot || rr.Body.String() != "short and stout" {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Body.String())
	}
}

func TestRecorder_Flushes(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := record(rr)
	_, _ = rec.Write([]byte("x"))
	rec.Flush()
	if !rr.Flushed {
		t.Fatalf("expected the underlying writer to be flushed")
	}
	if rec.status != http.StatusOK || rec.bytes != 1 {
		t.Fatalf("unexpected recorder state %+v", rec)
	}
}

func TestSetup_DisabledIsNoop(t *testing.T) {
	shutdown := Setup(context.Background(), TelemetryConfig{Enabled: false})
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown returned %v", err)
	}
}
