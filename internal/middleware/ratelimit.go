package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/veraproof/verification-core/internal/ratelimit"
)

// sessionCreatePath is fail-closed on Redis outage; every other path is
// fail-open so a cache blip never blocks already-paying traffic.
const sessionCreatePath = "/api/v1/sessions/create"

type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	config  Config
}

type Config struct {
	GlobalIP ratelimit.LimitConfig `yaml:"global_ip"`
	Tenant   ratelimit.LimitConfig `yaml:"tenant"`
}

func NewRateLimitMiddleware(l *ratelimit.Limiter, c Config) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: l, config: c}
}

// GlobalLimiter enforces the per-IP window for unauthenticated traffic and,
// once an AuthContext is present, the per-tenant API rate window.
func (m *RateLimitMiddleware) GlobalLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := strings.Split(r.RemoteAddr, ":")[0]
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ip = strings.Split(xff, ",")[0]
		}
		ipHash := m.limiter.HashIP(ip)
		ipKey := fmt.Sprintf("rl:ip:%s", ipHash)

		decision, err := m.limiter.CheckRateLimit(r.Context(), ipKey, m.config.GlobalIP)
		if !m.handleOutcome(w, r, decision, err) {
			return
		}

		if ac, ok := GetAuthContext(r.Context()); ok {
			tenantKey := fmt.Sprintf("rl:tenant:%s", ac.TenantID)
			tDecision, err := m.limiter.CheckRateLimit(r.Context(), tenantKey, m.config.Tenant)
			if !m.handleOutcome(w, r, tDecision, err) {
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// handleOutcome applies the decision/degraded-mode policy and writes a
// response if the request should stop here. Returns false when the caller
// must not continue to next.ServeHTTP.
func (m *RateLimitMiddleware) handleOutcome(w http.ResponseWriter, r *http.Request, decision *ratelimit.Decision, err error) bool {
	if err == ratelimit.ErrRedisUnavailable {
		if r.URL.Path == sessionCreatePath {
			log.Printf("ratelimit: redis unavailable on session create, fail closed")
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return false
		}
		log.Printf("ratelimit: redis unavailable, fail open for %s", r.URL.Path)
		return true
	}
	if err != nil {
		log.Printf("ratelimit: unexpected error: %v", err)
		return true
	}

	if !decision.Allowed {
		m.writeRateLimitHeaders(w, decision)
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	m.writeRateLimitHeaders(w, decision)
	return true
}

func (m *RateLimitMiddleware) writeRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	}
}
