package handler

// RESPONSE HELPERS:
// These functions standardise how we read JSON requests and send JSON
// responses and errors.
//
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, logger, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "event not found with id 12"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/auth"
)

// maxBodyBytes caps JSON request bodies. The largest legal body is an event
// with a 2000-char description.
const maxBodyBytes = 64 << 10

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// MessageResponse is the body of endpoints that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be set BEFORE the body is written. Once Encode
// starts writing, header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to the appropriate HTTP status code and
// sends it.
//
// errors.Is walks the whole chain, so a service error like
//
//	fmt.Errorf("updating event 3: %w", apperror.NotFound("event", 3))
//
// still maps to 404. Errors that are not AppErrors are logged and reported
// as a generic 500; their text never reaches the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized // 401
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden // 403
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict // 409
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	logger.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a single JSON value from the request body into dst.
// Malformed or oversized bodies become validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", fmt.Sprintf("request body must be %d bytes or less", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		default:
			return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
		}
	}
	if dec.More() {
		return apperror.ValidationFailed("body", "request body must contain a single JSON value")
	}
	return nil
}

// pathID parses the {id} URL parameter. Anything but a positive integer is
// a 400, never a lookup.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// requireUser returns the user ID RequireAuth put in the context. On a route
// mounted without RequireAuth it answers 401 itself and reports false.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Not authenticated"})
	}
	return userID, ok
}
