package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health/live", "/health/live"},
		{"/api/v1/submissions/3f2504e0-4f89-11d3-9a0c-0305e82c3301/withdraw", "/api/v1/submissions/{id}/withdraw"},
		{"/api/v1/lineups/3f2504e0-4f89-11d3-9a0c-0305e82c3301/package", "/api/v1/lineups/{id}/package"},
		{"/api/v1/quotas/download", "/api/v1/quotas/download"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидается %q", tt.path, got, tt.want)
		}
	}
}

func TestRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			got = routePattern(req)
		})
	})
	r.Get("/api/v1/quotas/{action}", func(w http.ResponseWriter, _ *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/quotas/download", nil))
	if got != "/api/v1/quotas/{action}" {
		t.Errorf("routePattern = %q", got)
	}
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("body"))
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil))

		out := buf.String()
		if !strings.Contains(out, tt.level) || !strings.Contains(out, "bytes=4") || !strings.Contains(out, "route=/api/v1/sync/status") {
			t.Errorf("статус %d: лог %q", tt.status, out)
		}
	}
}

func TestRecordStatus_SharedWrapper(t *testing.T) {
	rec := recordStatus(httptest.NewRecorder())
	if recordStatus(rec) != rec {
		t.Error("повторная обёртка должна переиспользовать statusRecorder")
	}
	rec.WriteHeader(http.StatusTeapot)
	if rec.status != http.StatusTeapot {
		t.Errorf("status = %d", rec.status)
	}
}
