package fusion_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/veraproof/verification-core/internal/fusion"
)

func TestScore_S1_PerfectCorrelation(t *testing.T) {
	g := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	f := []float64{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}

	res := fusion.Score(g, f)

	if math.Abs(res.Correlation-1.0) > 1e-9 {
		t.Errorf("expected r=1.0, got %v", res.Correlation)
	}
	if res.Tier1Score != 100 {
		t.Errorf("expected tier_1_score=100, got %d", res.Tier1Score)
	}
	if res.TriggerTier2 {
		t.Error("expected trigger_tier_2=false")
	}
}

func TestScore_S3_PerfectAntiCorrelation(t *testing.T) {
	g := []float64{1, 2, 3, 4, 5}
	f := []float64{10, 8, 6, 4, 2}

	res := fusion.Score(g, f)

	if math.Abs(res.Correlation-(-1.0)) > 1e-9 {
		t.Errorf("expected r=-1.0, got %v", res.Correlation)
	}
	if res.Tier1Score != 0 {
		t.Errorf("expected tier_1_score=0, got %d", res.Tier1Score)
	}
	if !res.TriggerTier2 {
		t.Error("expected trigger_tier_2=true")
	}
}

func TestScore_InsufficientData(t *testing.T) {
	res := fusion.Score([]float64{1}, []float64{1})
	if !res.InsufficientData {
		t.Error("expected InsufficientData for length-1 input")
	}
	if !res.TriggerTier2 {
		t.Error("expected trigger_tier_2=true on insufficient data")
	}
}

func TestScore_ZeroVariance(t *testing.T) {
	g := []float64{5, 5, 5, 5}
	f := []float64{1, 2, 3, 4}
	res := fusion.Score(g, f)
	if res.Correlation != 0 {
		t.Errorf("expected r=0 for zero-variance series, got %v", res.Correlation)
	}
}

func TestScore_TruncatesToShorterLength(t *testing.T) {
	g := []float64{1, 2, 3, 4, 5, 100, 100, 100}
	f := []float64{2, 4, 6, 8, 10}
	res := fusion.Score(g, f)
	if math.Abs(res.Correlation-1.0) > 1e-9 {
		t.Errorf("expected truncated series to correlate perfectly, got %v", res.Correlation)
	}
}

func TestInvariant_CorrelationBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 2 + rng.Intn(30)
		g := randomSeries(rng, n)
		f := randomSeries(rng, n)
		res := fusion.Score(g, f)
		if res.Correlation < -1 || res.Correlation > 1 {
			t.Fatalf("correlation out of bounds: %v", res.Correlation)
		}
		if res.Tier1Score < 0 || res.Tier1Score > 100 {
			t.Fatalf("tier_1_score out of bounds: %d", res.Tier1Score)
		}
		if res.Correlation >= fusion.FraudThreshold && res.Tier1Score < 85 {
			t.Fatalf("r=%v >= threshold but score=%d < 85", res.Correlation, res.Tier1Score)
		}
		if res.Correlation < 0.5 && res.Tier1Score >= 50 {
			t.Fatalf("r=%v < 0.5 but score=%d >= 50", res.Correlation, res.Tier1Score)
		}
		if res.TriggerTier2 != (res.Correlation < fusion.FraudThreshold) {
			t.Fatalf("trigger_tier_2 inconsistent with r=%v", res.Correlation)
		}
	}
}

func TestInvariant_CorrelationSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		n := 2 + rng.Intn(20)
		g := randomSeries(rng, n)
		f := randomSeries(rng, n)

		a := fusion.Score(g, f)
		b := fusion.Score(f, g)

		if math.Abs(a.Correlation-b.Correlation) > 1e-9 {
			t.Fatalf("correlation not symmetric: score(g,f)=%v score(f,g)=%v", a.Correlation, b.Correlation)
		}
	}
}

func randomSeries(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*20 - 10
	}
	return out
}
