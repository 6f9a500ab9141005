package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification errors.
var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrKeyNotFound  = errors.New("signing key not found")
)

// SessionClaims are the verified claims of a session token.
type SessionClaims struct {
	Subject string
	// Role is set when the token carries role metadata as a custom claim.
	Role string
}

// TokenVerifier validates provider-issued RS256 session tokens against a
// JWKS document.
type TokenVerifier struct {
	jwksURL    string
	issuer     string
	audience   string
	httpClient *http.Client
	cacheTTL   time.Duration
	leeway     time.Duration

	mu       sync.RWMutex
	expires  time.Time
	keyByKID map[string]*rsa.PublicKey
}

// NewTokenVerifier creates a verifier. Empty issuer or audience skip that check.
func NewTokenVerifier(jwksURL, issuer, audience string) *TokenVerifier {
	return &TokenVerifier{
		jwksURL:    strings.TrimSpace(jwksURL),
		issuer:     strings.TrimSpace(issuer),
		audience:   strings.TrimSpace(audience),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cacheTTL:   10 * time.Minute,
		leeway:     30 * time.Second,
		keyByKID:   map[string]*rsa.PublicKey{},
	}
}

// Verify parses and validates a session token.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	// keyErr records JWKS outages so they are not mistaken for bad tokens.
	var keyErr error
	claims := jwt.MapClaims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || strings.TrimSpace(kid) == "" {
			return nil, errors.New("missing kid in token")
		}
		key, err := v.publicKey(ctx, kid)
		if err != nil && !errors.Is(err, ErrKeyNotFound) {
			keyErr = err
		}
		return key, err
	})
	if keyErr != nil {
		return nil, fmt.Errorf("resolve signing key: %w", keyErr)
	}
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return nil, fmt.Errorf("%w: subject claim missing", ErrInvalidToken)
	}

	return &SessionClaims{Subject: sub, Role: roleClaim(claims)}, nil
}

// roleClaim reads role metadata exposed through a session token template,
// either as "metadata.role" or "public_metadata.role".
func roleClaim(claims jwt.MapClaims) string {
	for _, name := range []string{"metadata", "public_metadata"} {
		nested, ok := claims[name].(map[string]any)
		if !ok {
			continue
		}
		if role, ok := nested["role"].(string); ok {
			return role
		}
	}
	return ""
}

func (v *TokenVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key := v.cachedKey(kid); key != nil {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	if key := v.cachedKey(kid); key != nil {
		return key, nil
	}

	return nil, fmt.Errorf("%w: kid %s", ErrKeyNotFound, kid)
}

func (v *TokenVerifier) cachedKey(kid string) *rsa.PublicKey {
	now := time.Now()

	v.mu.RLock()
	defer v.mu.RUnlock()

	if now.After(v.expires) {
		return nil
	}
	return v.keyByKID[kid]
}

type jwksDocument struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (v *TokenVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kid == "" || k.Kty != "RSA" || k.N == "" || k.E == "" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("no usable RSA keys in JWKS")
	}

	v.mu.Lock()
	v.keyByKID = keys
	v.expires = time.Now().Add(v.cacheTTL)
	v.mu.Unlock()

	return nil
}

func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	var exp uint64
	for _, b := range eb {
		exp = (exp << 8) | uint64(b)
	}
	if exp == 0 || exp > 1<<31-1 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(exp),
	}, nil
}
