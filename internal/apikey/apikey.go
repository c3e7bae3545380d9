// Package apikey implements the full lifecycle for the API Key data model:
// generate, validate, revoke, scoped to tenant and environment.
//
// Key material is high-entropy (16 random bytes, 128 bits) rather than a
// human-chosen password, so it is hashed for storage with a deterministic
// SHA-256 digest used as the lookup key, rather than a slow,
// randomly-salted KDF like Argon2id, which would make exact-match lookup by
// hash impossible. Argon2id remains the right tool for human passwords; it
// is simply the wrong tool for a secret an attacker cannot feasibly guess.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/veraproof/verification-core/internal/apierr"
	"github.com/veraproof/verification-core/internal/data"
)

var keyPattern = regexp.MustCompile(`^vp_(sandbox|production)_[0-9a-f]{32}$`)

var ErrInvalidFormat = errors.New("api key does not match the expected format")

type Service struct {
	Keys  data.APIKeyModel
	Cache *RevocationCache // optional; nil disables the fast revocation path
}

func NewService(keys data.APIKeyModel, cache *RevocationCache) *Service {
	return &Service{Keys: keys, Cache: cache}
}

// Generate creates a new API key of the form vp_<env>_<32 hex> and persists
// its hash. The cleartext key is returned exactly once; only a hash and a
// truncated prefix/suffix (for dashboard display) are retained.
func (s *Service) Generate(ctx context.Context, tenantID string, env data.Environment) (cleartext string, key data.APIKey, err error) {
	if env != data.EnvSandbox && env != data.EnvProduction {
		return "", data.APIKey{}, apierr.New(apierr.InvalidInput, "environment must be sandbox or production")
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", data.APIKey{}, apierr.Wrap(apierr.Internal, "failed to generate key material", err)
	}
	hexPart := hex.EncodeToString(raw)
	cleartext = fmt.Sprintf("vp_%s_%s", env, hexPart)

	key = data.APIKey{
		KeyID:       uuid.New().String(),
		TenantID:    tenantID,
		Environment: env,
		KeyHash:     lookupHash(cleartext),
		Prefix:      cleartext[:len("vp_sandbox_")+4],
		LastFour:    hexPart[len(hexPart)-4:],
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.Keys.Create(ctx, key); err != nil {
		return "", data.APIKey{}, apierr.Wrap(apierr.Internal, "failed to persist api key", err)
	}
	return cleartext, key, nil
}

// Validate checks format, revocation cache, and DB state, returning the
// owning tenant and environment on success.
func (s *Service) Validate(ctx context.Context, cleartext string) (*data.APIKey, error) {
	if !keyPattern.MatchString(cleartext) {
		return nil, apierr.New(apierr.AuthInvalid, "malformed api key")
	}

	key, err := s.Keys.GetByHash(ctx, lookupHash(cleartext))
	if errors.Is(err, data.ErrRecordNotFound) {
		return nil, apierr.New(apierr.AuthInvalid, "unknown api key")
	}
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "api key lookup failed", err)
	}

	if key.RevokedAt != nil {
		return nil, apierr.New(apierr.AuthInvalid, "api key revoked")
	}

	if s.Cache != nil {
		if revoked, err := s.Cache.IsRevoked(ctx, key.TenantID, key.KeyID); err == nil && revoked {
			return nil, apierr.New(apierr.AuthInvalid, "api key revoked")
		}
	}

	return key, nil
}

// Revoke marks the key revoked in the store and, if a cache is configured,
// also records the revocation there; Validate consults the cache after its
// database lookup as a second revocation check.
func (s *Service) Revoke(ctx context.Context, tenantID, keyID string) error {
	now := time.Now().UTC()
	if err := s.Keys.Revoke(ctx, tenantID, keyID, now); err != nil {
		return apierr.Wrap(apierr.Internal, "failed to revoke api key", err)
	}
	if s.Cache != nil {
		_ = s.Cache.MarkRevoked(ctx, tenantID, keyID, 30*24*time.Hour)
	}
	return nil
}

func lookupHash(cleartext string) string {
	sum := sha256.Sum256([]byte(cleartext))
	return hex.EncodeToString(sum[:])
}
