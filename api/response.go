package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/conversation"
	"github.com/Nathanim1919/deepen-backend/internal/generation"
	"github.com/Nathanim1919/deepen-backend/internal/grounding"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse is the JSON error shape: a machine-readable code plus a
// human-readable message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// classifyError maps pipeline failures to an HTTP status and a
// machine-readable code. Unrecognized errors are internal.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, conversation.ErrValidation), errors.Is(err, grounding.ErrInvalidPolicy):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, conversation.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return 499, "canceled" // nginx convention: client closed request
	case errors.Is(err, grounding.ErrAggregation):
		return http.StatusInternalServerError, "aggregation_error"
	case errors.Is(err, generation.ErrGeneration):
		return http.StatusBadGateway, "generation_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeClassifiedError classifies err and writes the matching response.
func writeClassifiedError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	writeError(w, status, code, err.Error())
}

// parseIntParam parses a bounded integer query parameter, falling back to
// def on absence or malformed input.
func parseIntParam(r *http.Request, name string, def, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return def
	}
	return v
}

// pathUUID parses the {id} path segment.
func pathUUID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}
