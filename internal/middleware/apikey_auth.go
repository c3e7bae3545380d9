package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/veraproof/verification-core/internal/apierr"
	"github.com/veraproof/verification-core/internal/data"
)

// KeyValidator validates an API key's cleartext and returns its record.
type KeyValidator interface {
	Validate(ctx context.Context, cleartext string) (*data.APIKey, error)
}

type APIKeyAuth struct {
	keys KeyValidator
}

func NewAPIKeyAuth(k KeyValidator) *APIKeyAuth {
	return &APIKeyAuth{keys: k}
}

// Middleware validates the Authorization: Bearer <api_key> header and
// injects the resulting AuthContext.
func (m *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeAPIError(w, apierr.New(apierr.AuthInvalid, "missing or malformed Authorization header"))
			return
		}

		key, err := m.keys.Validate(r.Context(), parts[1])
		if err != nil {
			writeAPIError(w, err)
			return
		}

		ac := &AuthContext{
			TenantID: key.TenantID,
			APIKeyID: key.KeyID,
		}
		ctx := WithAuthContext(r.Context(), ac)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAPIError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apierr.StatusCodeOf(err))
}
