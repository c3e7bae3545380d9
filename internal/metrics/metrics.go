// Package metrics defines the process-wide Prometheus instruments for the
// verification core. All metrics are low-cardinality: no session or tenant
// id labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "verification_sessions_active",
		Help: "Current number of verification sessions with an open WebSocket connection",
	})

	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verification_sessions_started_total",
		Help: "Total verification sessions whose WebSocket connection was accepted",
	})

	SessionsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_sessions_completed_total",
		Help: "Total sessions reaching COMPLETE, by trust verdict",
	}, []string{"state"})

	Tier2TriggeredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verification_tier2_triggered_total",
		Help: "Total sessions where sensor-fusion correlation fell below threshold and deepfake classification ran",
	})

	ClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "verification_classifier_latency_ms",
		Help:    "Deepfake classifier round-trip latency in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 3000, 5000, 10000},
	})

	WebhookDeliveryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_webhook_delivery_total",
		Help: "Total webhook delivery attempts by outcome",
	}, []string{"outcome"})

	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_ratelimit_decisions_total",
		Help: "Rate limit decisions by scope and outcome",
	}, []string{"scope", "outcome"})

	RedisErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verification_redis_errors_total",
		Help: "Total Redis errors encountered by the rate/quota gate",
	})

	QuotaAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_quota_alerts_total",
		Help: "Total quota threshold-crossing alerts fired, by percent",
	}, []string{"percent"})
)
