package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// These tests pin the response envelope clients dispatch on: every success
// is {"data": ...}, every handler error is {"error": {"code", "message",
// "status"}}, and the two keys never appear together.

func rawEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var env map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not a JSON object: %v (body %s)", err, w.Body.String())
	}
	return env
}

func TestEnvelope_SuccessShape(t *testing.T) {
	srv := newTestServer(t, newTestServerConfig())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}

	env := rawEnvelope(t, w)
	if _, ok := env["data"]; !ok {
		t.Error(`success response missing "data" key`)
	}
	if _, ok := env["error"]; ok {
		t.Error(`success response must not carry an "error" key`)
	}
}

func TestEnvelope_ErrorShape(t *testing.T) {
	srv := newTestServer(t, newTestServerConfig())

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed body", http.MethodPost, "/api/v1/ask", `{"question": `, http.StatusBadRequest, "invalid_json"},
		{"empty question", http.MethodPost, "/api/v1/ask", `{"question": ""}`, http.StatusBadRequest, "question_required"},
		{"missing suggestion target", http.MethodGet, "/api/v1/suggest/relations", "", http.StatusBadRequest, "missing_note_id"},
		{"bad note id", http.MethodGet, "/api/v1/notes/nee", "", http.StatusBadRequest, "invalid_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := w.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", got)
			}

			env := rawEnvelope(t, w)
			if _, ok := env["data"]; ok {
				t.Error(`error response must not carry a "data" key`)
			}
			raw, ok := env["error"]
			if !ok {
				t.Fatal(`error response missing "error" key`)
			}

			var e Error
			if err := json.Unmarshal(raw, &e); err != nil {
				t.Fatalf("error object does not decode: %v", err)
			}
			if e.Code != tt.wantCode {
				t.Errorf("error.code = %q, want %q", e.Code, tt.wantCode)
			}
			if e.Message == "" {
				t.Error("error.message must not be empty")
			}
			if e.Status != tt.wantStatus {
				t.Errorf("error.status = %d, want %d (must mirror the HTTP status)", e.Status, tt.wantStatus)
			}
		})
	}
}
