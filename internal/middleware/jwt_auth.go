package middleware

import (
	"net/http"
	"strings"

	"github.com/veraproof/verification-core/internal/apierr"
	"github.com/veraproof/verification-core/internal/tokens"
)

// JWTAuth authenticates the dashboard surface: a human operator's browser
// session rather than a tenant's API integration, so it validates a bearer
// JWT instead of an API key.
type JWTAuth struct {
	tokens *tokens.Manager
}

func NewJWTAuth(t *tokens.Manager) *JWTAuth {
	return &JWTAuth{tokens: t}
}

func (m *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeAPIError(w, apierr.New(apierr.AuthInvalid, "missing or malformed Authorization header"))
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			writeAPIError(w, apierr.Wrap(apierr.AuthInvalid, "invalid dashboard token", err))
			return
		}
		if claims.TokenType != tokens.Access {
			writeAPIError(w, apierr.New(apierr.AuthInvalid, "refresh tokens cannot authenticate requests"))
			return
		}

		ac := &AuthContext{TenantID: claims.TenantID, UserID: claims.UserID}
		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
	})
}
