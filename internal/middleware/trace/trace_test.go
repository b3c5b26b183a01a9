package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	a := GenerateRequestID()
	b := GenerateRequestID()

	if !strings.HasPrefix(a, "req_") {
		t.Fatalf("request ID %q missing req_ prefix", a)
	}
	if a == b {
		t.Fatal("two generated request IDs collided")
	}
}

func TestGetRequestID(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Fatalf("GetRequestID on empty context = %q, want empty", got)
	}

	ctx := context.WithValue(context.Background(), RequestIDKey, "req_abc123")
	if got := GetRequestID(ctx); got != "req_abc123" {
		t.Fatalf("GetRequestID = %q, want req_abc123", got)
	}
}

func TestMiddlewareInjectsRequestID(t *testing.T) {
	m := NewMiddleware(nil)

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("handler saw request ID %q, want req_ prefix", seen)
	}
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "203.0.113.1" })

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	metrics := m.GetMetrics()
	if metrics.TotalRequests != 3 {
		t.Fatalf("TotalRequests = %d, want 3", metrics.TotalRequests)
	}
}

func TestStatusWriterCapturesCode(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	sw.WriteHeader(http.StatusNotFound)

	if sw.status != http.StatusNotFound {
		t.Fatalf("captured status = %d, want 404", sw.status)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("underlying recorder status = %d, want 404", rec.Code)
	}
}
