package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Error is the wire form of an API error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// envelope wraps every response body. Exactly one of Data or Error is set.
type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// WriteJSON writes data wrapped in the {"data": ...} envelope with the given
// status code. The body is encoded to a buffer first so a failed encode can
// still produce a clean 500 instead of a half-written response.
func WriteJSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	writeEnvelope(w, status, envelope{Data: data}, logger)
}

// WriteError writes the {"error": ...} envelope with the given status code.
// Code is a stable machine-readable identifier; message is for humans.
func WriteError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	writeEnvelope(w, status, envelope{Error: &Error{Code: code, Message: message, Status: status}}, logger)
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(env); err != nil {
		logger.Error("encoding response envelope", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are routine, not actionable.
		logger.Debug("writing response body", "error", err)
	}
}

// parseIntParam returns the named query parameter as a non-negative int,
// or defaultVal when the parameter is missing, malformed or negative.
func parseIntParam(r *http.Request, key string, defaultVal int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}

// parseFloatParam returns the named query parameter as a non-negative float,
// or defaultVal when the parameter is missing, malformed or negative.
func parseFloatParam(r *http.Request, key string, defaultVal float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
