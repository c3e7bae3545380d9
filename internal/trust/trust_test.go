package trust_test

import (
	"strings"
	"testing"

	"github.com/veraproof/verification-core/internal/trust"
)

func TestCombine_Tier1Only(t *testing.T) {
	res := trust.Combine(100, nil)
	if res.FinalScore != 100 {
		t.Errorf("expected final=100, got %d", res.FinalScore)
	}
	if !strings.Contains(res.Reasoning, "No AI forensics required") {
		t.Errorf("expected reasoning to cite sensor fusion only, got %q", res.Reasoning)
	}
}

func TestCombine_S2_Borderline(t *testing.T) {
	tier1 := 84
	tier2 := 90
	res := trust.Combine(tier1, &tier2)

	// floor(0.6*84 + 0.4*90) = floor(50.4 + 36) = floor(86.4) = 86
	if res.FinalScore != 86 {
		t.Errorf("expected final=86, got %d", res.FinalScore)
	}
}

func TestCombine_VerdictBands(t *testing.T) {
	cases := []struct {
		score   int
		verdict trust.Verdict
	}{
		{90, trust.VerdictHigh},
		{85, trust.VerdictHigh},
		{70, trust.VerdictModerate},
		{84, trust.VerdictModerate},
		{50, trust.VerdictLow},
		{69, trust.VerdictLow},
		{49, trust.VerdictFailed},
		{0, trust.VerdictFailed},
	}
	for _, c := range cases {
		res := trust.Combine(c.score, nil)
		if res.Verdict != c.verdict {
			t.Errorf("score=%d: expected verdict=%s, got %s", c.score, c.verdict, res.Verdict)
		}
	}
}
