package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tasklane/tasklane/internal/model"
)

// RoleCache stores resolved roles between requests.
type RoleCache interface {
	GetRole(ctx context.Context, userID string) (model.Role, error)
	SetRole(ctx context.Context, userID string, role model.Role, ttl time.Duration) error
}

// ClerkRoleResolver reads public_metadata.role from the Clerk Backend API.
// Results are cached and concurrent lookups for one user share a request.
type ClerkRoleResolver struct {
	apiURL     string
	secretKey  string
	httpClient *http.Client
	cache      RoleCache
	ttl        time.Duration
	group      singleflight.Group
	logger     *slog.Logger
}

// NewClerkRoleResolver creates a resolver. cache may be nil.
func NewClerkRoleResolver(apiURL, secretKey string, cache RoleCache, ttl time.Duration, logger *slog.Logger) *ClerkRoleResolver {
	return &ClerkRoleResolver{
		apiURL:     strings.TrimRight(apiURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cache:      cache,
		ttl:        ttl,
		logger:     logger.With("component", "role_resolver"),
	}
}

// ResolveRole returns the user's role, consulting the cache first.
func (c *ClerkRoleResolver) ResolveRole(ctx context.Context, userID string) (model.Role, error) {
	if c.cache != nil {
		if role, err := c.cache.GetRole(ctx, userID); err == nil {
			return role, nil
		}
	}

	v, err, _ := c.group.Do(userID, func() (any, error) {
		role, err := c.fetchRole(ctx, userID)
		if err != nil {
			return model.Role(""), err
		}
		if c.cache != nil {
			if err := c.cache.SetRole(ctx, userID, role, c.ttl); err != nil {
				c.logger.Warn("role_cache_write_failed", "user_id", userID, "error", err)
			}
		}
		return role, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRoleUnavailable, err)
	}
	return v.(model.Role), nil
}

type clerkUser struct {
	ID             string         `json:"id"`
	PublicMetadata map[string]any `json:"public_metadata"`
}

func (c *ClerkRoleResolver) fetchRole(ctx context.Context, userID string) (model.Role, error) {
	endpoint := c.apiURL + "/users/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}

	var user clerkUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode user: %w", err)
	}

	role, _ := user.PublicMetadata["role"].(string)
	return normalizeRole(role), nil
}

// ClerkGateway authenticates requests with Clerk session tokens.
type ClerkGateway struct {
	verifier       *TokenVerifier
	roles          RoleResolver
	headerFallback bool
	logger         *slog.Logger
}

// ClerkGatewayConfig configures NewClerkGateway.
type ClerkGatewayConfig struct {
	Verifier *TokenVerifier
	Roles    RoleResolver
	// HeaderFallback trusts X-User-Id and X-User-Role when no session
	// token is present. Development only.
	HeaderFallback bool
	Logger         *slog.Logger
}

// NewClerkGateway creates a Gateway backed by Clerk.
func NewClerkGateway(cfg ClerkGatewayConfig) *ClerkGateway {
	return &ClerkGateway{
		verifier:       cfg.Verifier,
		roles:          cfg.Roles,
		headerFallback: cfg.HeaderFallback,
		logger:         cfg.Logger.With("component", "identity_gateway"),
	}
}

// ResolveCaller implements Gateway. An invalid or expired token is treated
// as anonymous. A valid token whose role cannot be resolved is an error.
func (g *ClerkGateway) ResolveCaller(r *http.Request) (*model.Caller, error) {
	ctx := r.Context()

	token := sessionToken(r)
	if token == "" {
		if g.headerFallback {
			return headerCaller(r), nil
		}
		return nil, nil
	}

	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		g.logger.Debug("session_token_rejected", "error", err)
		return nil, nil
	}

	if claims.Role != "" {
		return &model.Caller{UserID: claims.Subject, Role: normalizeRole(claims.Role)}, nil
	}

	role, err := g.roles.ResolveRole(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return &model.Caller{UserID: claims.Subject, Role: role}, nil
}

func headerCaller(r *http.Request) *model.Caller {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return nil
	}
	return &model.Caller{UserID: userID, Role: normalizeRole(r.Header.Get(HeaderUserRole))}
}
