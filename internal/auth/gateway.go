package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tasklane/tasklane/internal/model"
)

// ErrRoleUnavailable is returned when an authenticated caller's role could
// not be resolved. Callers must fail closed.
var ErrRoleUnavailable = errors.New("role unavailable")

// Gateway resolves the caller of a request.
// A nil Caller with a nil error means the request is anonymous.
type Gateway interface {
	ResolveCaller(r *http.Request) (*model.Caller, error)
}

// RoleResolver looks up a user's role in the identity provider.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (model.Role, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(r *http.Request) (*model.Caller, error)

// ResolveCaller calls f(r).
func (f GatewayFunc) ResolveCaller(r *http.Request) (*model.Caller, error) {
	return f(r)
}

// Header names trusted by the development header fallback.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// sessionCookie carries the provider session token for browser requests.
const sessionCookie = "__session"

// sessionToken extracts a session token from the Authorization header or
// the session cookie. The header wins when both are present.
func sessionToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if token, ok := bearerToken(h); ok {
			return token
		}
		return ""
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func bearerToken(authHeader string) (string, bool) {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(authHeader[len(prefix):])
	if token == "" {
		return "", false
	}

	return token, true
}

// normalizeRole maps provider metadata to a Role. Missing metadata is a
// regular user.
func normalizeRole(raw string) model.Role {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return model.RoleUser
	}
	return model.Role(raw)
}
