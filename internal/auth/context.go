// Package auth resolves the calling identity from a request and carries it
// through the request context.
package auth

import (
	"context"

	"github.com/tasklane/tasklane/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// callerContextKey is the context key for storing the Caller.
	callerContextKey contextKey = "caller"
)

// ContextWithCaller adds the Caller to the context.
func ContextWithCaller(ctx context.Context, caller *model.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext retrieves the Caller from the context.
// Returns nil if not present.
func CallerFromContext(ctx context.Context) *model.Caller {
	caller, ok := ctx.Value(callerContextKey).(*model.Caller)
	if !ok {
		return nil
	}
	return caller
}

// UserIDFromContext returns the caller's user ID, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	caller := CallerFromContext(ctx)
	if caller == nil {
		return ""
	}
	return caller.UserID
}
