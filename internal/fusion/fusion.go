// Package fusion implements the sensor-fusion scorer (Tier 1): Pearson
// correlation between gyro gamma and horizontal optical flow, mapped to a
// 0-100 score via a piecewise-linear curve around the fraud threshold.
package fusion

import "math"

const FraudThreshold = 0.85

// Result is the outcome of scoring one aligned (G, F) pair.
type Result struct {
	Correlation      float64
	Tier1Score       int
	TriggerTier2     bool
	InsufficientData bool
}

// Score aligns G and F by truncating to the shorter length, computes their
// Pearson correlation, and maps it to a Tier-1 score. Sequences shorter
// than 2 after alignment are insufficient data: the caller decides whether
// to surface InsufficientData to its own consumer.
func Score(g, f []float64) Result {
	n := len(g)
	if len(f) < n {
		n = len(f)
	}
	if n < 2 {
		return Result{Correlation: 0, Tier1Score: 0, TriggerTier2: true, InsufficientData: true}
	}

	r := pearson(g[:n], f[:n])
	r = clamp(r, -1, 1)

	score := mapScore(r)

	return Result{
		Correlation:  r,
		Tier1Score:   score,
		TriggerTier2: r < FraudThreshold,
	}
}

// pearson computes the Pearson correlation coefficient of two equal-length
// sequences. Returns 0 when either series has zero variance.
func pearson(a, b []float64) float64 {
	n := float64(len(a))

	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA := sumA / n
	meanB := sumB / n

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0
	}

	return cov / math.Sqrt(varA*varB)
}

// mapScore implements the piecewise-linear mapping from correlation to
// tier_1_score, rounding to the nearest integer and clamping to [0,100].
func mapScore(r float64) int {
	var score float64
	if r >= FraudThreshold {
		score = 85 + ((r - FraudThreshold) / 0.15 * 15)
	} else {
		score = (r + 1.0) / 1.85 * 84
	}
	rounded := int(math.Round(score))
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}
	return rounded
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
