package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/onnwee/mealpilot/internal/decision"
	"github.com/onnwee/mealpilot/internal/middleware"
	"github.com/onnwee/mealpilot/internal/validate"
)

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 1 << 20

// NextCursorHeader carries the cursor of the next history page.
const NextCursorHeader = "X-Next-Cursor"

// errQuery is a query parameter problem already phrased for the caller.
type errQuery struct{ msg string }

func (e errQuery) Error() string { return e.msg }

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		WriteError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Unexpected error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(r.Context(), "failed to write response", "error", err)
	}
}

// decodeBody decodes the JSON body into dst and validates it. It writes the
// error response itself and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decode(w, r, dst, false)
}

// decodeOptionalBody is decodeBody where an empty body, with or without a
// Content-Length, leaves dst at its zero value.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decode(w, r, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, r, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
			return false
		}
		WriteError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return false
	}
	if fields := validate.Struct(dst); len(fields) > 0 {
		WriteFieldErrors(w, r, fields)
		return false
	}
	return true
}

// userID returns the authenticated caller. RequireAuth guarantees it is set
// on every route that calls this.
func userID(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}

// methodNotAllowed writes a 405 listing the allowed methods.
func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method Not Allowed")
}

// parseInstant parses an optional ISO-8601 instant query parameter.
func parseInstant(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, errQuery{msg: name + " must be an ISO-8601 instant"}
	}
	t = t.UTC()
	return &t, nil
}

// parseOptionalInt parses an optional integer query parameter.
func parseOptionalInt(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errQuery{msg: name + " must be an integer"}
	}
	return &n, nil
}

// parseOptionalBool parses an optional boolean query parameter.
func parseOptionalBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errQuery{msg: name + " must be true or false"}
	}
	return &b, nil
}

// parseWindow reads limit, cursor, from and to. The limit is clamped.
func parseWindow(r *http.Request) (decision.Window, error) {
	limit, err := parseOptionalInt(r, "limit")
	if err != nil {
		return decision.Window{}, err
	}
	from, err := parseInstant(r, "from")
	if err != nil {
		return decision.Window{}, err
	}
	to, err := parseInstant(r, "to")
	if err != nil {
		return decision.Window{}, err
	}
	return decision.Window{
		Limit:  decision.ClampHistoryLimit(limit),
		Cursor: r.URL.Query().Get("cursor"),
		From:   from,
		To:     to,
	}, nil
}

// writeQueryError writes a 400 for a query parsing failure, falling back to
// the domain mapping for anything else.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	var qe errQuery
	if errors.As(err, &qe) {
		WriteError(w, r, http.StatusBadRequest, ErrCodeValidation, qe.msg)
		return
	}
	writeDomainError(w, r, err)
}

// writePage writes a history page with the next cursor header when more
// rows remain.
func writePage[T any](w http.ResponseWriter, r *http.Request, page decision.Page[T]) {
	if page.NextCursor != "" {
		w.Header().Set(NextCursorHeader, page.NextCursor)
	}
	writeJSON(w, r, http.StatusOK, page.Items)
}

// pathID extracts the id segment after prefix and whatever follows it,
// e.g. "/api/decisions/abc/feedback" gives ("abc", "feedback").
func pathID(path, prefix string) (id, rest string) {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	id, rest, _ = strings.Cut(trimmed, "/")
	return id, rest
}
