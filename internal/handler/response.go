package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so all responses
// share one shape. Errors are always:
//   {"error": "<human-readable message>"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/notebox/internal/apperror"
)

// msgServerError is the only body a client sees for an unexpected failure.
const msgServerError = "Server error"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON sends data as JSON with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be written before the body; changes after the
// first Write are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already sent; all we can do is log
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status.
//
//	ErrUnauthenticated, ErrInvalidCredentials → 401
//	ErrConflict                               → 409
//	ErrValidation                             → 400
//	ErrNotFound                               → 404
//	anything else                             → 500, logged, generic body
//
// errors.As finds the *AppError anywhere in a wrapped chain, so services can
// add context with fmt.Errorf("...: %w", err) without changing the response.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := statusFor(appErr.Err)
		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{Error: appErr.Message})
			return
		}
	}

	logger.Error("request failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msgServerError})
}

func statusFor(sentinel error) int {
	switch {
	case errors.Is(sentinel, apperror.ErrUnauthenticated),
		errors.Is(sentinel, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(sentinel, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(sentinel, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(sentinel, apperror.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
