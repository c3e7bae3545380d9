package apikey_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/veraproof/verification-core/internal/apikey"
	"github.com/veraproof/verification-core/internal/data"
)

func newMockService(t *testing.T) (*apikey.Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	svc := apikey.NewService(data.APIKeyModel{DB: db}, nil)
	return svc, mock, func() { db.Close() }
}

func TestGenerate_MatchesFormat(t *testing.T) {
	svc, mock, closeFn := newMockService(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO api_keys")).WillReturnResult(sqlmock.NewResult(1, 1))

	cleartext, key, err := svc.Generate(context.Background(), "tenant-1", data.EnvSandbox)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	matched, _ := regexp.MatchString(`^vp_sandbox_[0-9a-f]{32}$`, cleartext)
	if !matched {
		t.Errorf("key %q does not match expected format", cleartext)
	}
	if key.TenantID != "tenant-1" {
		t.Errorf("expected tenant-1, got %s", key.TenantID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestValidate_RejectsMalformedKey(t *testing.T) {
	svc, _, closeFn := newMockService(t)
	defer closeFn()

	if _, err := svc.Validate(context.Background(), "not-a-key"); err == nil {
		t.Fatal("expected error for malformed key")
	}
}

func TestValidate_FailsAfterRevoke(t *testing.T) {
	svc, mock, closeFn := newMockService(t)
	defer closeFn()

	cleartext := "vp_sandbox_" + "aabbccddeeff00112233445566778899"
	revokedAt := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"key_id", "tenant_id", "environment", "key_hash", "prefix", "last_four", "created_at", "revoked_at"}).
		AddRow("key-1", "tenant-1", "sandbox", "irrelevant-for-test", "vp_sandbox_aabb", "8899", time.Now(), revokedAt)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT key_id, tenant_id, environment, key_hash, prefix, last_four, created_at, revoked_at")).
		WillReturnRows(rows)

	_, err := svc.Validate(context.Background(), cleartext)
	if err == nil {
		t.Fatal("expected validation to fail for revoked key")
	}
}

func TestValidate_UnknownKeyReturnsAuthInvalid(t *testing.T) {
	svc, mock, closeFn := newMockService(t)
	defer closeFn()

	cleartext := "vp_production_" + "00112233445566778899aabbccddeeff"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key_id, tenant_id, environment, key_hash, prefix, last_four, created_at, revoked_at")).
		WillReturnError(sql.ErrNoRows)

	_, err := svc.Validate(context.Background(), cleartext)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}
