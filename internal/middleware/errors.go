package middleware

import "net/http"

// Machine error codes attached by middleware.
const (
	ErrorCodeAuthFailed  = "auth_failed"
	ErrorCodeRateLimited = "rate_limited"
	ErrorCodeForbidden   = "forbidden"
)

// ErrorResponder writes an error response in the API's envelope. The API
// package provides the production implementation; middleware falls back to
// PlainError when none is given.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// PlainError records code for logging and writes message as text/plain.
func PlainError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	SetErrorCode(r.Context(), code)
	http.Error(w, message, status)
}

func responderOrPlain(respond ErrorResponder) ErrorResponder {
	if respond == nil {
		return PlainError
	}
	return respond
}
