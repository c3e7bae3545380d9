// Package quota implements the monthly usage counter half of the
// Rate/Quota Gate: check-before-admit, atomic decrement (increment of
// current_usage), 80%/100% alert thresholds, and billing-cycle reset.
// Recovered from the original UsageQuotaManager; its payments-provider
// billing plumbing is out of scope and is not ported.
package quota

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/veraproof/verification-core/internal/apierr"
	"github.com/veraproof/verification-core/internal/data"
	"github.com/veraproof/verification-core/internal/metrics"
)

// AlertSink receives threshold-crossing notifications; webhook/NATS
// delivery of these is wired by the caller, kept decoupled here.
type AlertSink interface {
	QuotaAlert(ctx context.Context, tenantID string, percent int, usage, quota int)
}

type LogAlertSink struct{}

func (LogAlertSink) QuotaAlert(ctx context.Context, tenantID string, percent int, usage, quota int) {
	log.Printf("quota: tenant %s crossed %d%% (%d/%d)", tenantID, percent, usage, quota)
	metrics.QuotaAlertsTotal.WithLabelValues(strconv.Itoa(percent)).Inc()
}

type Manager struct {
	Tenants  data.TenantModel
	Alerts   AlertSink
	FailOpen bool // missing-tenant policy: dev=true (allow), prod=false (fail closed)

	// crossed tracks which thresholds have already fired per tenant within
	// the current cycle, so alerts are idempotent within a cycle. Guarded by
	// crossedMu: concurrent tenant requests and the hourly reset sweep all
	// touch it from different goroutines.
	crossedMu sync.Mutex
	crossed   map[string]map[int]bool
}

func NewManager(tenants data.TenantModel, alerts AlertSink, failOpen bool) *Manager {
	return &Manager{
		Tenants:  tenants,
		Alerts:   alerts,
		FailOpen: failOpen,
		crossed:  make(map[string]map[int]bool),
	}
}

// Check returns nil if the tenant has remaining quota. A missing tenant is
// allowed in degraded/dev mode (FailOpen) and rejected in production.
func (m *Manager) Check(ctx context.Context, tenantID string) error {
	t, err := m.Tenants.Get(ctx, tenantID)
	if err != nil {
		if err == data.ErrRecordNotFound {
			if m.FailOpen {
				return nil
			}
			return apierr.New(apierr.QuotaExhausted, "tenant not found")
		}
		return apierr.Wrap(apierr.Internal, "quota check failed", err)
	}

	if t.CurrentUsage >= t.MonthlyQuota {
		return apierr.New(apierr.QuotaExhausted, "monthly quota exhausted")
	}
	return nil
}

// Decrement increments current_usage by one (the naming mirrors the
// original "decrement remaining quota" framing) and fires alerts on the
// 80%/100% crossing, once per threshold per cycle.
func (m *Manager) Decrement(ctx context.Context, tenantID string) error {
	usage, err := m.Tenants.IncrementUsage(ctx, tenantID)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "quota decrement failed", err)
	}

	t, err := m.Tenants.Get(ctx, tenantID)
	if err != nil {
		return nil // usage already recorded; alerting is best-effort
	}

	m.maybeAlert(ctx, tenantID, usage, t.MonthlyQuota)
	return nil
}

func (m *Manager) maybeAlert(ctx context.Context, tenantID string, usage, quota int) {
	if quota <= 0 {
		return
	}
	percent := usage * 100 / quota

	thresholds := []int{100, 80}

	m.crossedMu.Lock()
	var toFire int
	fire := false
	for _, threshold := range thresholds {
		if percent < threshold {
			continue
		}
		if m.crossed[tenantID] == nil {
			m.crossed[tenantID] = make(map[int]bool)
		}
		if m.crossed[tenantID][threshold] {
			continue
		}
		m.crossed[tenantID][threshold] = true
		toFire = threshold
		fire = true
		break // highest applicable threshold only
	}
	m.crossedMu.Unlock()

	if fire && m.Alerts != nil {
		m.Alerts.QuotaAlert(ctx, tenantID, toFire, usage, quota)
	}
}

// ResetMonthlyQuotas zeroes current_usage for every tenant whose billing
// cycle has ended and clears this process's alert-crossing memory so the
// new cycle can re-alert.
func (m *Manager) ResetMonthlyQuotas(ctx context.Context) (int64, error) {
	affected, err := m.Tenants.ResetUsageIfCycleEnded(ctx, time.Now().UTC())
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, "quota reset failed", err)
	}
	m.crossedMu.Lock()
	m.crossed = make(map[string]map[int]bool)
	m.crossedMu.Unlock()
	return affected, nil
}
