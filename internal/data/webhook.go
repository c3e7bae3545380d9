package data

import (
	"context"
	"database/sql"
	"time"
)

type Webhook struct {
	WebhookID       string
	TenantID        string
	URL             string
	Secret          string // encrypted at rest, see internal/crypto
	Enabled         bool
	Events          []string
	SuccessCount    int
	FailureCount    int
	LastTriggeredAt *time.Time
}

type WebhookModel struct {
	DB DBTX
}

func (m WebhookModel) ListEnabledForEvent(ctx context.Context, tenantID, event string) ([]Webhook, error) {
	const q = `
		SELECT webhook_id, tenant_id, url, secret, enabled, events, success_count, failure_count, last_triggered_at
		FROM webhooks WHERE tenant_id = $1 AND enabled = true AND $2 = ANY(events)`
	rows, err := m.DB.QueryContext(ctx, q, tenantID, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Webhook
	for rows.Next() {
		var w Webhook
		var lastTriggered sql.NullTime
		if err := rows.Scan(&w.WebhookID, &w.TenantID, &w.URL, &w.Secret, &w.Enabled, &w.Events,
			&w.SuccessCount, &w.FailureCount, &lastTriggered); err != nil {
			return nil, err
		}
		if lastTriggered.Valid {
			w.LastTriggeredAt = &lastTriggered.Time
		}
		out = append(out, w)
	}
	return out, nil
}

func (m WebhookModel) RecordOutcome(ctx context.Context, webhookID string, success bool, at time.Time) error {
	var q string
	if success {
		q = `UPDATE webhooks SET success_count = success_count + 1, last_triggered_at = $1 WHERE webhook_id = $2`
	} else {
		q = `UPDATE webhooks SET failure_count = failure_count + 1, last_triggered_at = $1 WHERE webhook_id = $2`
	}
	_, err := m.DB.ExecContext(ctx, q, at, webhookID)
	return err
}

// WebhookLog records a single delivery attempt, append-only like the
// teacher's audit trail, but scoped to webhook deliveries.
type WebhookLog struct {
	ID           string
	WebhookID    string
	SessionID    string
	AttemptNum   int
	StatusCode   int
	ResponseTime time.Duration
	Error        string
	CreatedAt    time.Time
}

type WebhookLogModel struct {
	DB DBTX
}

func (m WebhookLogModel) Insert(ctx context.Context, l WebhookLog) error {
	const q = `
		INSERT INTO webhook_logs (id, webhook_id, session_id, attempt_num, status_code, response_time_ms, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := m.DB.ExecContext(ctx, q, l.ID, l.WebhookID, l.SessionID, l.AttemptNum, l.StatusCode,
		l.ResponseTime.Milliseconds(), l.Error, l.CreatedAt)
	return err
}
