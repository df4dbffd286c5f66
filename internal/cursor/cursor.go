// Package cursor encodes and decodes the opaque resume tokens used by the
// history endpoints. A cursor names a (createdAt, id) position in a scan
// ordered by createdAt desc, id desc.
package cursor

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is returned when a cursor string cannot be decoded.
var ErrMalformed = errors.New("invalid cursor")

// Position is a point in a descending (createdAt, id) ordered scan.
type Position struct {
	CreatedAt time.Time
	ID        string
}

// Encode returns base64url (no padding) of "<epochMillis>:<id>".
func Encode(createdAt time.Time, id string) string {
	raw := strconv.FormatInt(createdAt.UnixMilli(), 10) + ":" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// EncodePosition is Encode for a Position.
func EncodePosition(p Position) string {
	return Encode(p.CreatedAt, p.ID)
}

// Decode parses a cursor produced by Encode.
// Padded input is accepted as well, since some clients re-pad base64 values.
func Decode(s string) (Position, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Position{}, ErrMalformed
	}

	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return Position{}, ErrMalformed
	}

	millis, id, ok := strings.Cut(string(b), ":")
	if !ok || strings.TrimSpace(id) == "" {
		return Position{}, ErrMalformed
	}

	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return Position{}, ErrMalformed
	}

	return Position{CreatedAt: time.UnixMilli(ms).UTC(), ID: id}, nil
}

// Admits reports whether a record at (createdAt, id) comes strictly after p
// in the scan: it is older than p, or shares its timestamp and has a smaller
// id. Timestamps are compared at millisecond precision, which is all a
// cursor carries.
func (p Position) Admits(createdAt time.Time, id string) bool {
	t := createdAt.UnixMilli()
	pt := p.CreatedAt.UnixMilli()
	if t != pt {
		return t < pt
	}
	return id < p.ID
}

// Page trims rows that were fetched with limit+1 to at most limit rows.
// When the extra row is present, the returned cursor resumes after the last
// row kept; otherwise the cursor is empty.
func Page[T any](rows []T, limit int, position func(T) Position) ([]T, string) {
	if limit <= 0 || len(rows) <= limit {
		return rows, ""
	}
	page := rows[:limit]
	return page, EncodePosition(position(page[len(page)-1]))
}
