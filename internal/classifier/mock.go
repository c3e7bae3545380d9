package classifier

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// MockClassifier returns randomized but plausible verdicts, seeded for
// reproducibility across a process run, matching the deterministic-mock
// requirement the core depends on in dev/test. rng is guarded by mu since
// Pool runs several worker goroutines against the same underlying
// Classifier concurrently, and *rand.Rand is not safe for concurrent use.
type MockClassifier struct {
	mu       sync.Mutex
	rng      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration
}

func NewMockClassifier(seed int64) *MockClassifier {
	return &MockClassifier{
		rng:      rand.New(rand.NewSource(seed)),
		minDelay: 800 * time.Millisecond,
		maxDelay: 2500 * time.Millisecond,
	}
}

// sample draws the five random values a single Classify call needs under
// one lock acquisition, so the lock isn't held across the delay's sleep.
func (m *MockClassifier) sample() (delay time.Duration, deepfake, diffusion, ganGhosting bool, confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delay = m.minDelay + time.Duration(m.rng.Int63n(int64(m.maxDelay-m.minDelay)))
	deepfake = m.rng.Float64() < 0.15
	confidence = 0.55 + m.rng.Float64()*0.44
	diffusion = deepfake && m.rng.Float64() < 0.6
	ganGhosting = deepfake && m.rng.Float64() < 0.3
	return delay, deepfake, diffusion, ganGhosting, confidence
}

func (m *MockClassifier) Classify(ctx context.Context, videoRef string) (Result, error) {
	delay, isDeepfake, diffusion, ganGhosting, confidence := m.sample()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(delay):
	}

	return Result{
		IsDeepfake:         isDeepfake,
		Confidence:         confidence,
		DiffusionArtifacts: diffusion,
		GANGhosting:        ganGhosting,
		ProcessingTimeMs:   int(delay.Milliseconds()),
	}, nil
}
