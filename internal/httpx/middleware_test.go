package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRequestIDContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"present", WithRequestID(context.Background(), "req-1"), "req-1"},
		{"missing", context.Background(), ""},
		{"wrong type", context.WithValue(context.Background(), requestIDContextKey, 42), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetRequestID(tt.ctx); got != tt.want {
				t.Errorf("GetRequestID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChain(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name+">")
				next.ServeHTTP(w, r)
				calls = append(calls, "<"+name)
			})
		}
	}
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "handler")
	})

	t.Run("outermost first", func(t *testing.T) {
		calls = nil
		Chain(mw("a"), mw("b"), mw("c"))(final).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

		want := []string{"a>", "b>", "c>", "handler", "<c", "<b", "<a"}
		if !slices.Equal(calls, want) {
			t.Errorf("calls = %v, want %v", calls, want)
		}
	})

	t.Run("empty chain", func(t *testing.T) {
		calls = nil
		Chain()(final).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

		if !slices.Equal(calls, []string{"handler"}) {
			t.Errorf("calls = %v, want [handler]", calls)
		}
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generates uuid", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

		if _, err := uuid.Parse(seen); err != nil {
			t.Fatalf("request ID %q is not a UUID: %v", seen, err)
		}
		if got := rr.Header().Get(RequestIDHeader); got != seen {
			t.Errorf("header = %q, want %q", got, seen)
		}
	})

	t.Run("keeps incoming header", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "upstream-7")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if seen != "upstream-7" {
			t.Errorf("context request ID = %q, want upstream-7", seen)
		}
		if got := rr.Header().Get(RequestIDHeader); got != "upstream-7" {
			t.Errorf("header = %q, want upstream-7", got)
		}
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := Chain(RequestID, Logger(logger))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte("gone"))
	}))

	req := httptest.NewRequest("GET", "/shortUrls/abc", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}

	checks := map[string]any{
		"msg":       "http request",
		"level":     "INFO",
		"method":    "GET",
		"path":      "/shortUrls/abc",
		"status":    float64(http.StatusGone),
		"bytes":     float64(4),
		"client_ip": "203.0.113.9",
	}
	for k, want := range checks {
		if entry[k] != want {
			t.Errorf("log[%q] = %v, want %v", k, entry[k], want)
		}
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("log line has no request_id")
	}
}

func TestLogger_RedirectsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://go.dev", http.StatusFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/shortUrls/abc", nil))

	if buf.Len() != 0 {
		t.Errorf("expected redirect to be logged below info, got %s", buf.String())
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Error != "internal_error" {
		t.Errorf("error = %q, want internal_error", resp.Error)
	}
	if !strings.Contains(buf.String(), "kaboom") {
		t.Errorf("panic value not logged: %s", buf.String())
	}
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("allow all", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://example.com")
		rr := httptest.NewRecorder()
		CORS(nil)(ok).ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q, want *", got)
		}
	})

	t.Run("allow list", func(t *testing.T) {
		allowed := []string{"https://example.com"}
		tests := []struct {
			origin string
			want   string
		}{
			{"https://example.com", "https://example.com"},
			{"https://evil.example", ""},
			{"", ""},
		}
		for _, tt := range tests {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			CORS(allowed)(ok).ServeHTTP(rr, req)

			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("origin %q: Allow-Origin = %q, want %q", tt.origin, got, tt.want)
			}
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		called := false
		h := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("OPTIONS", "/shortUrl", nil))

		if called {
			t.Error("handler should not run for preflight")
		}
		if rr.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("Allow-Methods not set")
		}
	})
}

func TestResponseWriter(t *testing.T) {
	t.Run("first status wins", func(t *testing.T) {
		rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
		rw.WriteHeader(http.StatusFound)
		rw.WriteHeader(http.StatusInternalServerError)

		if rw.statusCode != http.StatusFound {
			t.Errorf("statusCode = %d, want 302", rw.statusCode)
		}
	})

	t.Run("implicit 200 on write", func(t *testing.T) {
		rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
		_, _ = rw.Write([]byte("hello"))

		if rw.statusCode != http.StatusOK || rw.written != 5 {
			t.Errorf("statusCode = %d written = %d, want 200 and 5", rw.statusCode, rw.written)
		}
	})
}

type observation struct {
	method string
	status int
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveRequest(method string, status int, _ time.Duration) {
	o.seen = append(o.seen, observation{method, status})
}

func TestObserve(t *testing.T) {
	obs := &recordingObserver{}
	h := Observe(obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/missing", nil))

	want := []observation{{"GET", http.StatusOK}, {"POST", http.StatusNotFound}}
	if !slices.Equal(obs.seen, want) {
		t.Errorf("observations = %v, want %v", obs.seen, want)
	}
}
