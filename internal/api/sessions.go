// Package api implements the REST surface for session lifecycle
// management: create a verification session, fetch its state, results,
// and artifact links. Every handler authenticates via the API-key
// middleware and reads the tenant id it injects; none of them touch the
// WebSocket path, which lives in internal/verify.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/veraproof/verification-core/internal/apierr"
	"github.com/veraproof/verification-core/internal/artifact"
	"github.com/veraproof/verification-core/internal/data"
	"github.com/veraproof/verification-core/internal/middleware"
	"github.com/veraproof/verification-core/internal/quota"
	"github.com/veraproof/verification-core/internal/ratelimit"
	"github.com/veraproof/verification-core/internal/vsession"
)

type SessionHandlers struct {
	Sessions        *vsession.Store
	Limiter         *ratelimit.Limiter
	Quota           *quota.Manager
	Artifacts       artifact.Sink
	FrontendBaseURL string
	SessionExpiry   time.Duration
	SignedURLTTL    time.Duration
	TenantRateLimit ratelimit.LimitConfig
}

type createSessionRequest struct {
	ReturnURL string          `json:"return_url"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

type createSessionResponse struct {
	SessionID  string    `json:"session_id"`
	SessionURL string    `json:"session_url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Create handles POST /sessions/create: checks the tenant's API rate
// window, then its monthly quota, then admits -- each failure surfaces a
// distinct error kind per the admission contract.
func (h *SessionHandlers) Create(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, apierr.New(apierr.AuthInvalid, "unauthenticated"))
		return
	}

	decision, err := h.Limiter.CheckRateLimit(r.Context(), "tenant:"+auth.TenantID, h.TenantRateLimit)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "rate limit check failed", err))
		return
	}
	if !decision.Allowed {
		writeError(w, apierr.New(apierr.RateLimited, "api rate limit exceeded"))
		return
	}

	if err := h.Quota.Check(r.Context(), auth.TenantID); err != nil {
		writeError(w, err)
		return
	}

	var req createSessionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	now := time.Now().UTC()
	sess := data.Session{
		SessionID: uuid.New().String(),
		TenantID:  auth.TenantID,
		CreatedAt: now,
		ExpiresAt: now.Add(h.SessionExpiry),
		State:     data.SessionIdle,
		ReturnURL: req.ReturnURL,
		Metadata:  req.Metadata,
	}

	if err := h.Sessions.Create(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Quota.Decrement(r.Context(), auth.TenantID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createSessionResponse{
		SessionID:  sess.SessionID,
		SessionURL: fmt.Sprintf("%s/verify/%s", strings.TrimRight(h.FrontendBaseURL, "/"), sess.SessionID),
		ExpiresAt:  sess.ExpiresAt,
	})
}

// Get handles GET /sessions/{id}.
func (h *SessionHandlers) Get(w http.ResponseWriter, r *http.Request, sessionID string) {
	auth, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, apierr.New(apierr.AuthInvalid, "unauthenticated"))
		return
	}

	sess, err := h.Sessions.Get(r.Context(), auth.TenantID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Results handles GET /sessions/{id}/results.
func (h *SessionHandlers) Results(w http.ResponseWriter, r *http.Request, sessionID string) {
	auth, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, apierr.New(apierr.AuthInvalid, "unauthenticated"))
		return
	}

	sess, err := h.Sessions.Get(r.Context(), auth.TenantID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"state":              sess.State,
		"tier_1_score":       sess.Tier1Score,
		"tier_2_score":       sess.Tier2Score,
		"final_trust_score":  sess.FinalTrustScore,
		"correlation_value":  sess.CorrelationValue,
		"reasoning":          sess.Reasoning,
	})
}

// artifactKind selects which of the three stored artifacts to link.
type artifactKind string

const (
	ArtifactVideo       artifactKind = "video"
	ArtifactIMUData     artifactKind = "imu-data"
	ArtifactOpticalFlow artifactKind = "optical-flow"
)

// Artifact handles GET /sessions/{id}/{video|imu-data|optical-flow}: it
// resolves the stored key and returns a time-bounded signed URL rather
// than the bytes themselves.
func (h *SessionHandlers) Artifact(w http.ResponseWriter, r *http.Request, sessionID string, kind artifactKind) {
	auth, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, apierr.New(apierr.AuthInvalid, "unauthenticated"))
		return
	}

	sess, err := h.Sessions.Get(r.Context(), auth.TenantID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	var key *string
	switch kind {
	case ArtifactVideo:
		key = sess.VideoKey
	case ArtifactIMUData:
		key = sess.IMUKey
	case ArtifactOpticalFlow:
		key = sess.FlowKey
	}
	if key == nil {
		writeError(w, apierr.New(apierr.NotFound, "artifact not available for this session"))
		return
	}

	url, err := h.Artifacts.Sign(r.Context(), *key, h.SignedURLTTL)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.NotFound, "artifact not available for this session", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apierr.StatusCodeOf(err), map[string]string{"error": err.Error()})
}
