// Package handlers implements the admin HTTP API of the memory store.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"semantic-memory/internal/archival"
	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/memerr"
)

// maxBodyBytes bounds request bodies. Snapshot imports are the largest payload.
const maxBodyBytes = 64 << 20

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	writeJSON(ctx, w, status, ErrorResponse{Error: message, RequestID: contextutil.RequestID(ctx)})
}

// decodeBody decodes a JSON request body into v. An empty body leaves v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeServiceError maps service errors to HTTP status codes.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)

	var validationErr *memerr.ValidationError
	switch {
	case errors.As(err, &validationErr):
		logger.WarnContext(ctx, "rejected request", "error", err)
		writeError(ctx, w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s", validationErr.Error()))
	case errors.Is(err, memerr.ErrInvalidInput):
		logger.WarnContext(ctx, "rejected request", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, memerr.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, archival.ErrCycleInProgress):
		writeError(ctx, w, http.StatusConflict, "Archival cycle already running")
	case errors.Is(err, memerr.ErrSearchUnavailable), memerr.IsTransport(err):
		logger.ErrorContext(ctx, "external service error", "error", err)
		writeError(ctx, w, http.StatusServiceUnavailable, "Embedding or generation service unavailable")
	default:
		logger.ErrorContext(ctx, "service error", "error", err)
		writeError(ctx, w, http.StatusInternalServerError, defaultMsg)
	}
}
