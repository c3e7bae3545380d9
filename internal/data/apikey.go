package data

import (
	"context"
	"database/sql"
	"time"
)

type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

type APIKey struct {
	KeyID       string
	TenantID    string
	Environment Environment
	KeyHash     string
	Prefix      string // first 15 chars, e.g. "vp_sandbox_aabb", kept in cleartext for display
	LastFour    string
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

type APIKeyModel struct {
	DB DBTX
}

func (m APIKeyModel) Create(ctx context.Context, k APIKey) error {
	const q = `
		INSERT INTO api_keys (key_id, tenant_id, environment, key_hash, prefix, last_four, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := m.DB.ExecContext(ctx, q, k.KeyID, k.TenantID, k.Environment, k.KeyHash, k.Prefix, k.LastFour, k.CreatedAt)
	return err
}

// GetByHash looks a key up by its hash for validation; the hash is a
// deterministic digest of high-entropy key material so collisions are not
// a practical concern and this returns at most one row.
func (m APIKeyModel) GetByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	const q = `
		SELECT key_id, tenant_id, environment, key_hash, prefix, last_four, created_at, revoked_at
		FROM api_keys WHERE key_hash = $1`
	return scanAPIKey(m.DB.QueryRowContext(ctx, q, keyHash))
}

func (m APIKeyModel) Get(ctx context.Context, tenantID, keyID string) (*APIKey, error) {
	const q = `
		SELECT key_id, tenant_id, environment, key_hash, prefix, last_four, created_at, revoked_at
		FROM api_keys WHERE key_id = $1 AND tenant_id = $2`
	return scanAPIKey(m.DB.QueryRowContext(ctx, q, keyID, tenantID))
}

func scanAPIKey(row *sql.Row) (*APIKey, error) {
	var k APIKey
	var revokedAt sql.NullTime
	err := row.Scan(&k.KeyID, &k.TenantID, &k.Environment, &k.KeyHash, &k.Prefix, &k.LastFour, &k.CreatedAt, &revokedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		k.RevokedAt = &revokedAt.Time
	}
	return &k, nil
}

func (m APIKeyModel) Revoke(ctx context.Context, tenantID, keyID string, at time.Time) error {
	const q = `UPDATE api_keys SET revoked_at = $1 WHERE key_id = $2 AND tenant_id = $3 AND revoked_at IS NULL`
	_, err := m.DB.ExecContext(ctx, q, at, keyID, tenantID)
	return err
}

func (m APIKeyModel) ListByTenant(ctx context.Context, tenantID string) ([]APIKey, error) {
	const q = `
		SELECT key_id, tenant_id, environment, key_hash, prefix, last_four, created_at, revoked_at
		FROM api_keys WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := m.DB.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []APIKey
	for rows.Next() {
		var k APIKey
		var revokedAt sql.NullTime
		if err := rows.Scan(&k.KeyID, &k.TenantID, &k.Environment, &k.KeyHash, &k.Prefix, &k.LastFour, &k.CreatedAt, &revokedAt); err != nil {
			return nil, err
		}
		if revokedAt.Valid {
			k.RevokedAt = &revokedAt.Time
		}
		out = append(out, k)
	}
	return out, nil
}
