package middleware

import (
	"context"
	"sync/atomic"
)

type userIDKey struct{}

type userHolderKey struct{}

type errorCodeKey struct{}

// holder lets code deep in the chain report a value back to the logging
// middleware, which cannot see contexts derived after it ran.
type holder struct {
	v atomic.Value
}

func (h *holder) set(s string) {
	h.v.Store(s)
}

func (h *holder) get() string {
	if s, ok := h.v.Load().(string); ok {
		return s
	}
	return ""
}

func withErrorCodeHolder(ctx context.Context) (context.Context, *holder) {
	h := &holder{}
	return context.WithValue(ctx, errorCodeKey{}, h), h
}

func withUserHolder(ctx context.Context) (context.Context, *holder) {
	h := &holder{}
	return context.WithValue(ctx, userHolderKey{}, h), h
}

// SetUserID stores the authenticated user id in the context and reports it
// to an enclosing Logging middleware.
func SetUserID(ctx context.Context, userID string) context.Context {
	if h, ok := ctx.Value(userHolderKey{}).(*holder); ok {
		h.set(userID)
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the authenticated user id, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SetErrorCode records a machine error code for the request log line.
// Inside Logging the returned context is ctx itself.
func SetErrorCode(ctx context.Context, code string) context.Context {
	h, ok := ctx.Value(errorCodeKey{}).(*holder)
	if !ok {
		ctx, h = withErrorCodeHolder(ctx)
	}
	h.set(code)
	return ctx
}

// GetErrorCode returns the recorded error code, or "".
func GetErrorCode(ctx context.Context) string {
	if h, ok := ctx.Value(errorCodeKey{}).(*holder); ok {
		return h.get()
	}
	return ""
}
