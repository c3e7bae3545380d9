// Package trust combines Tier-1 and optional Tier-2 scores into a final
// trust score plus a human-readable reasoning string.
package trust

import (
	"fmt"
	"math"
)

type Verdict string

const (
	VerdictHigh     Verdict = "high"
	VerdictModerate Verdict = "moderate"
	VerdictLow      Verdict = "low"
	VerdictFailed   Verdict = "failed"
)

type Result struct {
	FinalScore int
	Verdict    Verdict
	Reasoning  string
}

// Combine folds an optional Tier-2 score into the Tier-1 score. When
// tier2 is nil, the final score is the Tier-1 score unchanged and the
// reasoning cites sensor fusion only.
func Combine(tier1Score int, tier2Score *int) Result {
	var final int
	var reasoning string

	if tier2Score == nil {
		final = tier1Score
		reasoning = fmt.Sprintf("Sensor-fusion correlation scored %d/100. No AI forensics required.", tier1Score)
	} else {
		final = int(math.Floor(float64(tier1Score)*0.6 + float64(*tier2Score)*0.4))
		reasoning = fmt.Sprintf(
			"Combined score: sensor-fusion %d/100 (weight 0.6) and deepfake classifier %d/100 (weight 0.4).",
			tier1Score, *tier2Score,
		)
	}

	verdict := verdictFor(final)
	reasoning = fmt.Sprintf("%s Verdict: %s.", reasoning, verdict)

	return Result{FinalScore: final, Verdict: verdict, Reasoning: reasoning}
}

func verdictFor(score int) Verdict {
	switch {
	case score >= 85:
		return VerdictHigh
	case score >= 70:
		return VerdictModerate
	case score >= 50:
		return VerdictLow
	default:
		return VerdictFailed
	}
}
