// Package webhook delivers session-completion events to tenant-configured
// endpoints: HMAC-signed POST, three retries with 1s/2s/4s backoff, and a
// durable per-attempt delivery log.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/veraproof/verification-core/internal/crypto"
	"github.com/veraproof/verification-core/internal/data"
	"github.com/veraproof/verification-core/internal/metrics"
)

const signatureHeader = "X-VeraProof-Signature"

var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

type Dispatcher struct {
	Webhooks  data.WebhookModel
	Logs      data.WebhookLogModel
	Keyring   *crypto.Keyring
	HTTP      *http.Client
	Spool     *Spool
	NATS      *nats.Conn // optional; nil disables completion-event publishing
}

func NewDispatcher(webhooks data.WebhookModel, logs data.WebhookLogModel, kr *crypto.Keyring, spool *Spool, nc *nats.Conn) *Dispatcher {
	return &Dispatcher{
		Webhooks: webhooks,
		Logs:     logs,
		Keyring:  kr,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		Spool:    spool,
		NATS:     nc,
	}
}

// Dispatch delivers event to every tenant webhook subscribed to it, each
// independently retried; a failure on one webhook never blocks another.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, sessionID, event string, payload map[string]any) {
	hooks, err := d.Webhooks.ListEnabledForEvent(ctx, tenantID, event)
	if err != nil {
		log.Printf("webhook: failed to list subscribers for %s/%s: %v", tenantID, event, err)
		return
	}
	for _, hook := range hooks {
		go d.deliverWithRetry(ctx, hook, sessionID, payload)
	}
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, hook data.Webhook, sessionID string, payload map[string]any) {
	secret, err := DecryptSecret(d.Keyring, hook.TenantID, hook.Secret)
	if err != nil {
		log.Printf("webhook: failed to decrypt secret for %s: %v", hook.WebhookID, err)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= len(backoffSchedule)+1; attempt++ {
		status, elapsed, err := d.attempt(ctx, hook.URL, secret, payload)
		d.recordAttempt(ctx, hook.WebhookID, sessionID, attempt, status, elapsed, err)

		if err == nil && status >= 200 && status < 300 {
			_ = d.Webhooks.RecordOutcome(ctx, hook.WebhookID, true, time.Now().UTC())
			metrics.WebhookDeliveryTotal.WithLabelValues("delivered").Inc()
			d.publishCompletion(sessionID, hook.WebhookID, true)
			return
		}
		lastErr = err
		if attempt <= len(backoffSchedule) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoffSchedule[attempt-1]):
			}
		}
	}

	_ = d.Webhooks.RecordOutcome(ctx, hook.WebhookID, false, time.Now().UTC())
	metrics.WebhookDeliveryTotal.WithLabelValues("failed").Inc()
	d.publishCompletion(sessionID, hook.WebhookID, false)
	log.Printf("webhook: delivery to %s failed after %d attempts: %v", hook.URL, len(backoffSchedule)+1, lastErr)
}

func (d *Dispatcher) attempt(ctx context.Context, url, secret string, payload map[string]any) (int, time.Duration, error) {
	sig, body, err := Sign(secret, payload)
	if err != nil {
		return 0, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signatureHeader, sig)

	start := time.Now()
	resp, err := d.HTTP.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, elapsed, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, elapsed, nil
}

func (d *Dispatcher) recordAttempt(ctx context.Context, webhookID, sessionID string, attempt, status int, elapsed time.Duration, attemptErr error) {
	entry := data.WebhookLog{
		ID:           uuid.New().String(),
		WebhookID:    webhookID,
		SessionID:    sessionID,
		AttemptNum:   attempt,
		StatusCode:   status,
		ResponseTime: elapsed,
		CreatedAt:    time.Now().UTC(),
	}
	if attemptErr != nil {
		entry.Error = attemptErr.Error()
	}

	if err := d.Logs.Insert(ctx, entry); err != nil {
		log.Printf("webhook: delivery log insert failed, spooling: %v", err)
		if d.Spool != nil {
			if spoolErr := d.Spool.Write(entry); spoolErr != nil {
				log.Printf("webhook: CRITICAL, failed to spool delivery log for %s: %v", webhookID, spoolErr)
			}
		}
	}
}

func (d *Dispatcher) publishCompletion(sessionID, webhookID string, success bool) {
	if d.NATS == nil {
		return
	}
	evt := map[string]any{
		"session_id": sessionID,
		"webhook_id": webhookID,
		"success":    success,
		"at":         time.Now().UTC(),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := d.NATS.Publish("webhooks.delivery_completed", body); err != nil {
		log.Printf("webhook: nats publish failed: %v", err)
	}
}

