// Package vsession wraps the relational session store with a bounded
// in-memory fallback so a brief database outage degrades a verification
// session's durability rather than failing session creation outright.
package vsession

import (
	"context"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/veraproof/verification-core/internal/apierr"
	"github.com/veraproof/verification-core/internal/data"
)

const fallbackCapacity = 4096

// Store is the service-layer entry point used by the verification core: it
// tries the relational store first and, only on failure, falls back to an
// in-process LRU cache. Sessions held in the fallback cache carry no
// marker: Get returns them exactly as it returns rows from the relational
// store.
type Store struct {
	Sessions data.SessionModel
	FailOpen bool

	mu       sync.Mutex
	fallback *lru.Cache[string, data.Session]
}

func NewStore(sessions data.SessionModel, failOpen bool) *Store {
	cache, _ := lru.New[string, data.Session](fallbackCapacity)
	return &Store{Sessions: sessions, FailOpen: failOpen, fallback: cache}
}

func (s *Store) Create(ctx context.Context, sess data.Session) error {
	if err := s.Sessions.Create(ctx, sess); err != nil {
		if !s.FailOpen {
			return apierr.Wrap(apierr.StoreUnavailable, "session store unavailable", err)
		}
		log.Printf("vsession: relational store unavailable, falling back to memory for %s: %v", sess.SessionID, err)
		s.mu.Lock()
		s.fallback.Add(sess.SessionID, sess)
		s.mu.Unlock()
	}
	return nil
}

func (s *Store) Get(ctx context.Context, tenantID, sessionID string) (*data.Session, error) {
	sess, err := s.Sessions.Get(ctx, tenantID, sessionID)
	if err == nil {
		return sess, nil
	}
	if err != data.ErrRecordNotFound {
		log.Printf("vsession: relational get failed, checking fallback: %v", err)
	}

	s.mu.Lock()
	cached, ok := s.fallback.Get(sessionID)
	s.mu.Unlock()
	if ok && cached.TenantID == tenantID {
		return &cached, nil
	}
	return nil, apierr.New(apierr.NotFound, "session not found")
}

func (s *Store) SetState(ctx context.Context, sessionID string, state data.SessionState) error {
	if err := s.Sessions.SetState(ctx, sessionID, state); err != nil {
		s.mu.Lock()
		if cached, ok := s.fallback.Get(sessionID); ok {
			cached.State = state
			s.fallback.Add(sessionID, cached)
		}
		s.mu.Unlock()
	}
	return nil
}

func (s *Store) ExtendExpiry(ctx context.Context, sessionID string, newExpiry time.Time) error {
	if err := s.Sessions.ExtendExpiry(ctx, sessionID, newExpiry); err != nil {
		s.mu.Lock()
		if cached, ok := s.fallback.Get(sessionID); ok {
			cached.ExpiresAt = newExpiry
			s.fallback.Add(sessionID, cached)
		}
		s.mu.Unlock()
	}
	return nil
}

func (s *Store) SetArtifactKeys(ctx context.Context, sessionID string, videoKey, imuKey, flowKey *string) error {
	if err := s.Sessions.SetArtifactKeys(ctx, sessionID, videoKey, imuKey, flowKey); err != nil {
		s.mu.Lock()
		if cached, ok := s.fallback.Get(sessionID); ok {
			cached.VideoKey = videoKey
			cached.IMUKey = imuKey
			cached.FlowKey = flowKey
			s.fallback.Add(sessionID, cached)
		}
		s.mu.Unlock()
		return apierr.Wrap(apierr.StoreUnavailable, "failed to persist artifact keys", err)
	}
	return nil
}

func (s *Store) SetResults(ctx context.Context, sessionID string, tier1, tier2, final int, correlation float64, reasoning string) error {
	if err := s.Sessions.SetResults(ctx, sessionID, tier1, tier2, final, correlation, reasoning); err != nil {
		s.mu.Lock()
		if cached, ok := s.fallback.Get(sessionID); ok {
			cached.Tier1Score = &tier1
			cached.Tier2Score = &tier2
			cached.FinalTrustScore = &final
			cached.CorrelationValue = &correlation
			cached.Reasoning = reasoning
			cached.State = data.SessionComplete
			s.fallback.Add(sessionID, cached)
		}
		s.mu.Unlock()
		return apierr.Wrap(apierr.StoreUnavailable, "failed to persist session results", err)
	}
	return nil
}
