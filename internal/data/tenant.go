package data

import (
	"context"
	"database/sql"
	"time"
)

type SubscriptionTier string

const (
	TierSandbox    SubscriptionTier = "sandbox"
	TierStarter    SubscriptionTier = "starter"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

type Tenant struct {
	TenantID          string
	Name              string
	SubscriptionTier  SubscriptionTier
	MonthlyQuota      int
	CurrentUsage      int
	BillingCycleStart time.Time
	BillingCycleEnd   time.Time
}

type TenantModel struct {
	DB DBTX
}

func (m TenantModel) Get(ctx context.Context, tenantID string) (*Tenant, error) {
	const q = `
		SELECT tenant_id, name, subscription_tier, monthly_quota, current_usage,
		       billing_cycle_start, billing_cycle_end
		FROM tenants WHERE tenant_id = $1`

	var t Tenant
	err := m.DB.QueryRowContext(ctx, q, tenantID).Scan(
		&t.TenantID, &t.Name, &t.SubscriptionTier, &t.MonthlyQuota, &t.CurrentUsage,
		&t.BillingCycleStart, &t.BillingCycleEnd,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// IncrementUsage atomically bumps current_usage by one and returns the
// post-increment value, the building block the quota gate decrements
// against. Never clamps to monthly_quota: a concurrent admission race may
// produce at most one overshoot, which is an accepted invariant.
func (m TenantModel) IncrementUsage(ctx context.Context, tenantID string) (int, error) {
	const q = `
		UPDATE tenants SET current_usage = current_usage + 1
		WHERE tenant_id = $1
		RETURNING current_usage`

	var usage int
	err := m.DB.QueryRowContext(ctx, q, tenantID).Scan(&usage)
	if err == sql.ErrNoRows {
		return 0, ErrRecordNotFound
	}
	return usage, err
}

// ResetUsageIfCycleEnded zeroes current_usage and rolls billing_cycle_end
// forward a month for every tenant whose cycle has ended, leaving
// monthly_quota untouched.
func (m TenantModel) ResetUsageIfCycleEnded(ctx context.Context, today time.Time) (int64, error) {
	const q = `
		UPDATE tenants
		SET current_usage = 0,
		    billing_cycle_start = billing_cycle_end,
		    billing_cycle_end = billing_cycle_end + INTERVAL '1 month'
		WHERE billing_cycle_end <= $1`

	res, err := m.DB.ExecContext(ctx, q, today)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m TenantModel) Create(ctx context.Context, t Tenant) error {
	const q = `
		INSERT INTO tenants (tenant_id, name, subscription_tier, monthly_quota, current_usage,
		                      billing_cycle_start, billing_cycle_end)
		VALUES ($1, $2, $3, $4, 0, $5, $6)`
	_, err := m.DB.ExecContext(ctx, q, t.TenantID, t.Name, t.SubscriptionTier, t.MonthlyQuota,
		t.BillingCycleStart, t.BillingCycleEnd)
	return err
}
