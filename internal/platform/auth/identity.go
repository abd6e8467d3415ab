package auth

import (
	"context"
	"strings"
)

// Role constants carried in the role claim of bearer tokens.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
)

// Identity captures the authenticated principal extracted from a bearer token.
type Identity struct {
	UID    string
	Email  string
	Role   string
	Claims map[string]any
}

// HasRole reports whether the identity carries the role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	return i.Role != "" && strings.EqualFold(i.Role, strings.TrimSpace(role))
}

// HasAnyRole reports whether the identity carries any of the provided roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

type contextKey string

const identityContextKey contextKey = "github.com/readify/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func claimAsString(claims map[string]any, key string) string {
	raw, ok := claims[key]
	if !ok {
		return ""
	}
	if v, ok := raw.(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// roleFromClaims reads a single role. Tokens carrying a list use its first recognised entry.
func roleFromClaims(claims map[string]any, key string) string {
	switch v := claims[key].(type) {
	case string:
		return normaliseRole(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && normaliseRole(s) != "" {
				return normaliseRole(s)
			}
		}
	case []string:
		for _, item := range v {
			if normaliseRole(item) != "" {
				return normaliseRole(item)
			}
		}
	}
	return ""
}

func cloneClaims(claims map[string]any) map[string]any {
	out := make(map[string]any, len(claims))
	for key, value := range claims {
		out[key] = value
	}
	return out
}
