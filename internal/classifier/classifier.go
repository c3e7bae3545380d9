// Package classifier wraps the Tier-2 deepfake classifier behind an
// interface: a deterministic mock for development/tests, and an HTTP client
// for a real remote inference endpoint. The core treats either as a
// potentially slow, cancellable RPC.
package classifier

import "context"

// Result is the raw classifier verdict; internal/trust maps it to a score.
type Result struct {
	IsDeepfake        bool
	Confidence        float64 // [0,1]
	DiffusionArtifacts bool
	GANGhosting        bool
	ProcessingTimeMs   int
}

// Classifier is the contract the Verification Session Core depends on.
// Implementations must respect ctx cancellation/deadline; callers treat a
// context error as CLASSIFIER_UNAVAILABLE and recover locally.
type Classifier interface {
	Classify(ctx context.Context, videoRef string) (Result, error)
}

// Tier2Score maps a classifier Result to a 0-100 score per the combiner's
// contract: confident "real" verdicts score high, confident "fake"
// verdicts score low.
func Tier2Score(r Result) int {
	var score float64
	if r.IsDeepfake {
		score = (1 - r.Confidence) * 100
	} else {
		score = r.Confidence * 100
	}
	rounded := int(score + 0.5)
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}
	return rounded
}
