package quota_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/veraproof/verification-core/internal/data"
	"github.com/veraproof/verification-core/internal/quota"
)

type recordingAlertSink struct {
	calls []int
}

func (r *recordingAlertSink) QuotaAlert(ctx context.Context, tenantID string, percent int, usage, q int) {
	r.calls = append(r.calls, percent)
}

func TestCheck_AllowsUnderQuota(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	rows := sqlmock.NewRows([]string{"tenant_id", "name", "subscription_tier", "monthly_quota", "current_usage",
		"billing_cycle_start", "billing_cycle_end"}).
		AddRow("t1", "Acme", "pro", 100, 50, sqlNow(), sqlNow())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id, name, subscription_tier")).WillReturnRows(rows)

	m := quota.NewManager(data.TenantModel{DB: db}, nil, false)
	if err := m.Check(context.Background(), "t1"); err != nil {
		t.Errorf("expected quota check to pass, got %v", err)
	}
}

func TestCheck_RejectsAtQuota(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	rows := sqlmock.NewRows([]string{"tenant_id", "name", "subscription_tier", "monthly_quota", "current_usage",
		"billing_cycle_start", "billing_cycle_end"}).
		AddRow("t1", "Acme", "pro", 100, 100, sqlNow(), sqlNow())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id, name, subscription_tier")).WillReturnRows(rows)

	m := quota.NewManager(data.TenantModel{DB: db}, nil, false)
	if err := m.Check(context.Background(), "t1"); err == nil {
		t.Error("expected quota check to fail at 100%")
	}
}

func TestCheck_MissingTenant_FailOpenVsFailClosed(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id, name, subscription_tier")).WillReturnError(sql.ErrNoRows)
	openMgr := quota.NewManager(data.TenantModel{DB: db}, nil, true)
	if err := openMgr.Check(context.Background(), "unknown"); err != nil {
		t.Errorf("expected fail-open to allow, got %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id, name, subscription_tier")).WillReturnError(sql.ErrNoRows)
	closedMgr := quota.NewManager(data.TenantModel{DB: db}, nil, false)
	if err := closedMgr.Check(context.Background(), "unknown"); err == nil {
		t.Error("expected fail-closed to reject")
	}
}

func TestDecrement_FiresAlertAt80Percent(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tenants SET current_usage = current_usage + 1")).
		WillReturnRows(sqlmock.NewRows([]string{"current_usage"}).AddRow(80))

	rows := sqlmock.NewRows([]string{"tenant_id", "name", "subscription_tier", "monthly_quota", "current_usage",
		"billing_cycle_start", "billing_cycle_end"}).
		AddRow("t1", "Acme", "pro", 100, 80, sqlNow(), sqlNow())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id, name, subscription_tier")).WillReturnRows(rows)

	alerts := &recordingAlertSink{}
	m := quota.NewManager(data.TenantModel{DB: db}, alerts, false)

	if err := m.Decrement(context.Background(), "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts.calls) != 1 || alerts.calls[0] != 80 {
		t.Errorf("expected one 80%% alert, got %v", alerts.calls)
	}
}

func sqlNow() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}
