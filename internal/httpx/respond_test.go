package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		data     any
		wantJSON string
	}{
		{"object", http.StatusOK, map[string]string{"status": "ok"}, `{"status":"ok"}`},
		{"created", http.StatusCreated, map[string]int{"clicks": 0}, `{"clicks":0}`},
		{"list", http.StatusOK, []string{"a", "b"}, `["a","b"]`},
		{"empty list", http.StatusOK, []string{}, `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteJSON(rr, tt.status, tt.data)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if got := rr.Body.String(); got != tt.wantJSON+"\n" {
				t.Errorf("body = %q, want %q", got, tt.wantJSON+"\n")
			}
		})
	}
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if resp.Error != "internal_error" {
		t.Errorf("error = %q, want internal_error", resp.Error)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		code    string
		message string
		details any
		want    string
	}{
		{
			name:    "message only",
			status:  http.StatusBadRequest,
			code:    "invalid_request",
			message: "fullUrl is required",
			want:    `{"error":"invalid_request","message":"fullUrl is required"}`,
		},
		{
			name:   "code only",
			status: http.StatusNotFound,
			code:   "not_found",
			want:   `{"error":"not_found"}`,
		},
		{
			name:    "with details",
			status:  http.StatusGone,
			code:    "expired",
			message: "link expired",
			details: map[string]string{"shortUrl": "abc1234"},
			want:    `{"error":"expired","message":"link expired","details":{"shortUrl":"abc1234"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.status, tt.code, tt.message, tt.details)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if got := rr.Body.String(); got != tt.want+"\n" {
				t.Errorf("body = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRedirect(t *testing.T) {
	rr := httptest.NewRecorder()
	Redirect(rr, "https://go.dev/doc")

	if rr.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rr.Code)
	}
	if got := rr.Header().Get("Location"); got != "https://go.dev/doc" {
		t.Errorf("Location = %q", got)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rr.Body.String())
	}
}
