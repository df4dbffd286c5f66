// Package api provides the HTTP handlers for the mealpilot API and its
// standardized error envelope.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/onnwee/mealpilot/internal/cursor"
	"github.com/onnwee/mealpilot/internal/decision"
	"github.com/onnwee/mealpilot/internal/item"
	"github.com/onnwee/mealpilot/internal/middleware"
	"github.com/onnwee/mealpilot/internal/preference"
	"github.com/onnwee/mealpilot/internal/validate"
)

// Common error codes used throughout the API. They are attached to the
// request context for logging and never appear in the response body.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = middleware.ErrorCodeAuthFailed

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = middleware.ErrorCodeRateLimited

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the resource belongs to someone else.
	ErrCodeForbidden = middleware.ErrorCodeForbidden

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeInvalidCursor indicates a history cursor could not be decoded.
	ErrCodeInvalidCursor = "invalid_cursor"
)

// ErrorResponse is the envelope every API error is returned in.
type ErrorResponse struct {
	Timestamp   time.Time             `json:"timestamp"`
	Status      int                   `json:"status"`
	Error       string                `json:"error"`
	Message     string                `json:"message"`
	Path        string                `json:"path"`
	RequestID   string                `json:"requestId"`
	FieldErrors []validate.FieldError `json:"fieldErrors,omitempty"`
}

// WriteError writes the error envelope. It matches middleware.ErrorResponder
// so middleware rejections share the format.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, r, status, code, message, nil)
}

// WriteFieldErrors writes a 400 with per-field validation messages.
func WriteFieldErrors(w http.ResponseWriter, r *http.Request, fields []validate.FieldError) {
	writeEnvelope(w, r, http.StatusBadRequest, ErrCodeValidation, "Validation failed", fields)
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, code, message string, fields []validate.FieldError) {
	ctx := middleware.SetErrorCode(r.Context(), code)

	body := ErrorResponse{
		Timestamp:   time.Now().UTC(),
		Status:      status,
		Error:       http.StatusText(status),
		Message:     message,
		Path:        r.URL.Path,
		RequestID:   middleware.GetRequestID(ctx),
		FieldErrors: fields,
	}

	data, err := json.Marshal(body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// domainErrors maps domain sentinels to an error code and message. An
// empty message reports the sentinel's own text.
var domainErrors = []struct {
	target  error
	code    string
	message string
}{
	{decision.ErrDecisionNotFound, ErrCodeNotFound, "decision not found"},
	{item.ErrItemNotFound, ErrCodeNotFound, "item not found"},
	{decision.ErrNotOwner, ErrCodeForbidden, "not your decision"},
	{item.ErrNotOwner, ErrCodeForbidden, "not your item"},
	{cursor.ErrMalformed, ErrCodeInvalidCursor, "invalid cursor"},
	{decision.ErrInvalidRange, ErrCodeValidation, ""},
	{decision.ErrPlatformRequired, ErrCodeValidation, ""},
	{decision.ErrInvalidStatus, ErrCodeValidation, ""},
	{preference.ErrBudgetRange, ErrCodeValidation, ""},
	{preference.ErrRevisionConflict, ErrCodeConflict, "preference was modified concurrently, retry the request"},
}

// writeDomainError maps a domain sentinel to its status and message.
// Anything unrecognised is logged and reported as a 500 without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, de := range domainErrors {
		if !errors.Is(err, de.target) {
			continue
		}
		msg := de.message
		if msg == "" {
			msg = de.target.Error()
		}
		WriteError(w, r, StatusCodeMapping(de.code), de.code, msg)
		return
	}
	slog.ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path)
	WriteError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Unexpected error")
}

// StatusCodeMapping returns the recommended HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeInvalidCursor:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
