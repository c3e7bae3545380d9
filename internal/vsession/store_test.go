package vsession_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/veraproof/verification-core/internal/data"
	"github.com/veraproof/verification-core/internal/vsession"
)

func TestCreate_FallsBackToMemoryOnStoreFailure(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnError(sql.ErrConnDone)

	store := vsession.NewStore(data.SessionModel{DB: db}, true)
	sess := data.Session{SessionID: "s1", TenantID: "t1", State: data.SessionIdle}

	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("expected fail-open create to succeed, got %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT session_id")).WillReturnError(sql.ErrConnDone)
	got, err := store.Get(context.Background(), "t1", "s1")
	if err != nil {
		t.Fatalf("expected fallback get to succeed, got %v", err)
	}
	if got.SessionID != "s1" {
		t.Errorf("unexpected session: %+v", got)
	}
}

func TestCreate_FailClosedReturnsError(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnError(sql.ErrConnDone)

	store := vsession.NewStore(data.SessionModel{DB: db}, false)
	sess := data.Session{SessionID: "s1", TenantID: "t1", State: data.SessionIdle}

	if err := store.Create(context.Background(), sess); err == nil {
		t.Fatal("expected fail-closed create to return an error")
	}
}

func TestExtendExpiry_UpdatesFallbackWhenStoreDown(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnError(sql.ErrConnDone)

	store := vsession.NewStore(data.SessionModel{DB: db}, true)
	sess := data.Session{SessionID: "s1", TenantID: "t1", State: data.SessionIdle, ExpiresAt: time.Now()}
	_ = store.Create(context.Background(), sess)

	newExpiry := time.Now().Add(10 * time.Minute)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET expires_at")).WillReturnError(sql.ErrConnDone)
	if err := store.ExtendExpiry(context.Background(), "s1", newExpiry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
