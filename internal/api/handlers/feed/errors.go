package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// XRPCError is the error body shape XRPC clients expect.
type XRPCError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(XRPCError{Error: errorType, Message: message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// writeJSON writes a JSON success response. Encoding errors are logged
// only: the status line is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
