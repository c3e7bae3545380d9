package middleware

import "github.com/veraproof/verification-core/internal/metrics"

func RecordRateLimit(scope string, allowed bool) {
	metrics.RateLimitDecisions.WithLabelValues(scope, decisionLabel(allowed)).Inc()
}

func RecordRedisError() {
	metrics.RedisErrors.Inc()
}

func decisionLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "rejected"
}
