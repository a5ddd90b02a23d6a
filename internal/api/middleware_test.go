package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRecoveryMiddleware_Panic(t *testing.T) {
	logger := discardLogger()

	panicHandler := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("test panic")
	})

	handler := recoveryMiddleware(logger)(panicHandler)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("recoveryMiddleware(panic) status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	e := decodeErrorEnvelope(t, w)
	if e.Code != "internal_error" {
		t.Errorf("recoveryMiddleware(panic) code = %q, want %q", e.Code, "internal_error")
	}
}

func TestRecoveryMiddleware_NoPanic(t *testing.T) {
	logger := discardLogger()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"ok": "true"}, logger)
	})

	handler := recoveryMiddleware(logger)(okHandler)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("recoveryMiddleware(ok) status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	handler.ServeHTTP(w, r)

	got := w.Header().Get("X-Request-ID")
	if got == "" {
		t.Fatal("requestIDMiddleware() did not set X-Request-ID header")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("requestIDMiddleware() X-Request-ID = %q, not a valid UUID", got)
	}
}

func TestRequestIDMiddleware_ReusesValid(t *testing.T) {
	want := uuid.New().String()

	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", want)

	handler.ServeHTTP(w, r)

	if got := w.Header().Get("X-Request-ID"); got != want {
		t.Errorf("requestIDMiddleware(valid) X-Request-ID = %q, want %q", got, want)
	}
}

func TestRequestIDMiddleware_RejectsInvalid(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "not-a-valid-uuid")

	handler.ServeHTTP(w, r)

	got := w.Header().Get("X-Request-ID")
	if got == "not-a-valid-uuid" {
		t.Error("requestIDMiddleware(invalid) should not reuse invalid X-Request-ID")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("requestIDMiddleware(invalid) X-Request-ID = %q, not a valid UUID", got)
	}
}

func TestRequestIDMiddleware_InContext(t *testing.T) {
	want := uuid.New().String()

	var gotFromCtx string
	handler := requestIDMiddleware()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotFromCtx = requestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", want)

	handler.ServeHTTP(w, r)

	if gotFromCtx != want {
		t.Errorf("requestIDFromContext() = %q, want %q", gotFromCtx, want)
	}
}

func TestCORSMiddleware_AllowedOriginPreflight(t *testing.T) {
	origins := []string{"http://localhost:5173"}
	handler := corsMiddleware(origins)(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("next handler should not be called for OPTIONS")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/api/v1/ask", nil)
	r.Header.Set("Origin", "http://localhost:5173")

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("CORS preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:5173")
	}

	if got := w.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("Access-Control-Allow-Headers should be set")
	}
}

func TestCORSMiddleware_DisallowedOriginPreflight(t *testing.T) {
	origins := []string{"http://localhost:5173"}
	handler := corsMiddleware(origins)(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("next handler should not be called for OPTIONS")
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/api/v1/ask", nil)
	r.Header.Set("Origin", "http://evil.example")

	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("CORS disallowed preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty for disallowed origin", got)
	}
}

func TestCORSMiddleware_NormalRequest(t *testing.T) {
	origins := []string{"http://localhost:5173"}
	called := false
	handler := corsMiddleware(origins)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/notes", nil)
	r.Header.Set("Origin", "http://localhost:5173")

	handler.ServeHTTP(w, r)

	if !called {
		t.Error("next handler was not called")
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:5173")
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Run("production", func(t *testing.T) {
		w := httptest.NewRecorder()
		setSecurityHeaders(w, false)

		expected := map[string]string{
			"X-Content-Type-Options":    "nosniff",
			"X-Frame-Options":           "DENY",
			"Referrer-Policy":           "strict-origin-when-cross-origin",
			"Content-Security-Policy":   "default-src 'none'",
			"Strict-Transport-Security": "max-age=63072000; includeSubDomains",
		}

		for header, want := range expected {
			if got := w.Header().Get(header); got != want {
				t.Errorf("setSecurityHeaders(isDev=false) %q = %q, want %q", header, got, want)
			}
		}
	})

	t.Run("dev", func(t *testing.T) {
		w := httptest.NewRecorder()
		setSecurityHeaders(w, true)

		if got := w.Header().Get("Strict-Transport-Security"); got != "" {
			t.Errorf("setSecurityHeaders(isDev=true) HSTS = %q, want empty", got)
		}

		// Other headers should still be set
		if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("setSecurityHeaders(isDev=true) X-Content-Type-Options = %q, want %q", got, "nosniff")
		}
	})
}
