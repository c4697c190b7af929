package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	Logger(logger)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}

	if logEntry["method"] != "GET" {
		t.Errorf("expected method GET, got %v", logEntry["method"])
	}
	if logEntry["path"] != "/test" {
		t.Errorf("expected path /test, got %v", logEntry["path"])
	}
	if logEntry["status"] != float64(200) {
		t.Errorf("expected status 200, got %v", logEntry["status"])
	}
	if logEntry["bytes"] != float64(2) {
		t.Errorf("expected 2 bytes, got %v", logEntry["bytes"])
	}
	if logEntry["message"] != "request completed" {
		t.Errorf("expected message 'request completed', got %v", logEntry["message"])
	}
}

func TestLoggerStatusLevels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"not found", http.StatusNotFound, "info"},
		{"bad request", http.StatusBadRequest, "info"},
		{"server error", http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			Logger(zerolog.New(&buf))(handler).ServeHTTP(httptest.NewRecorder(), req)

			var logEntry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
				t.Fatalf("failed to parse log entry: %v", err)
			}
			if logEntry["status"] != float64(tt.status) {
				t.Errorf("expected status %d, got %v", tt.status, logEntry["status"])
			}
			if logEntry["level"] != tt.level {
				t.Errorf("expected level %s, got %v", tt.level, logEntry["level"])
			}
		})
	}
}

func TestLoggerImplicitStatus(t *testing.T) {
	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/empty", nil)
	Logger(zerolog.New(&buf))(handler).ServeHTTP(httptest.NewRecorder(), req)

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if logEntry["status"] != float64(200) {
		t.Errorf("expected status 200, got %v", logEntry["status"])
	}
}

func TestRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/api/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = routePattern(r)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/reports/abc", nil))
	if got != "/api/reports/{id}" {
		t.Errorf("expected route pattern /api/reports/{id}, got %q", got)
	}

	plain := httptest.NewRequest(http.MethodGet, "/plain", nil)
	if p := routePattern(plain); p != unmatchedRoute {
		t.Errorf("expected %s without router, got %q", unmatchedRoute, p)
	}
}

func TestRoutePatternUnmatchedPaths(t *testing.T) {
	r := chi.NewRouter()
	var patterns []string
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			patterns = append(patterns, routePattern(req))
		})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/wp-login.php", "/.env", "/admin/config.php"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if len(patterns) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(patterns))
	}
	for _, p := range patterns {
		if p != unmatchedRoute {
			t.Errorf("expected unknown paths to share the %s label, got %q", unmatchedRoute, p)
		}
	}
}
