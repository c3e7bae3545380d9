package middleware

import (
	"context"
)

type contextKey string

const (
	AuthContextKey contextKey = "auth_context"
)

// AuthContext holds the authenticated caller's identity. Most traffic
// authenticates with an API key (TenantID + APIKeyID); the optional
// dashboard path authenticates with a JWT instead (UserID set, APIKeyID
// empty).
type AuthContext struct {
	TenantID string
	APIKeyID string
	UserID   string
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	val, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return val, ok
}

func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, auth)
}
