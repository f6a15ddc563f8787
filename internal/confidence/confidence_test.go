package confidence

import (
	"math"
	"testing"

	"horse.fit/firstprint/internal/credibility"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregateEmpty(t *testing.T) {
	t.Parallel()

	if got := Aggregate(nil); got != 0 {
		t.Fatalf("expected zero confidence for no matches, got %v", got)
	}
}

func TestAggregateSingleMatch(t *testing.T) {
	t.Parallel()

	got := Aggregate([]Input{{
		Similarity:  0.9,
		Credibility: 60,
		Tier:        credibility.LevelMedium,
	}})

	// 0.6*90 + 0.4*60, no bonuses.
	if !almostEqual(got, 78) {
		t.Fatalf("unexpected confidence: %v", got)
	}
}

func TestAggregateTierWeighting(t *testing.T) {
	t.Parallel()

	inputs := []Input{
		{Similarity: 1.0, Credibility: 50, Tier: credibility.LevelVeryHigh},
		{Similarity: 0.5, Credibility: 50, Tier: credibility.LevelVeryLow},
	}

	// (1.5*80 + 0.6*50) / 2.1
	want := (1.5*80 + 0.6*50) / 2.1
	if got := Aggregate(inputs); !almostEqual(got, want) {
		t.Fatalf("unexpected tier-weighted confidence: got %v want %v", got, want)
	}
}

func TestAggregateExactMatchBonus(t *testing.T) {
	t.Parallel()

	base := Input{Similarity: 0.8, Credibility: 50, Tier: credibility.LevelMedium}
	withoutBonus := Aggregate([]Input{base})

	exact := base
	exact.Exact = true
	if got := Aggregate([]Input{exact}); !almostEqual(got, withoutBonus*1.10) {
		t.Fatalf("expected 10%% exact-match uplift: got %v base %v", got, withoutBonus)
	}
}

func TestAggregateHighCredibilityBonus(t *testing.T) {
	t.Parallel()

	base := Aggregate([]Input{{Similarity: 0.5, Credibility: 79, Tier: credibility.LevelMedium}})
	boosted := Aggregate([]Input{{Similarity: 0.5, Credibility: 80, Tier: credibility.LevelMedium}})

	// 0.6*50 + 0.4*80 = 62, then the 5% uplift for credibility >= 80.
	if !almostEqual(boosted, 62*1.05) {
		t.Fatalf("unexpected boosted confidence: %v", boosted)
	}
	if boosted <= base {
		t.Fatalf("expected high-credibility match to outscore %v, got %v", base, boosted)
	}
}

func TestAggregateClampsAt100(t *testing.T) {
	t.Parallel()

	got := Aggregate([]Input{{
		Similarity:  1.0,
		Credibility: 100,
		Tier:        credibility.LevelVeryHigh,
		Exact:       true,
	}})
	if got != 100 {
		t.Fatalf("expected confidence to clamp at 100, got %v", got)
	}
}

func TestAggregateMonotonic(t *testing.T) {
	t.Parallel()

	base := []Input{
		{Similarity: 0.55, Credibility: 40, Tier: credibility.LevelLow},
		{Similarity: 0.80, Credibility: 55, Tier: credibility.LevelMedium},
		{Similarity: 0.90, Credibility: 65, Tier: credibility.LevelHigh},
	}
	baseScore := Aggregate(base)

	// Raising any single match's similarity or credibility never lowers the
	// aggregate.
	for i := range base {
		for _, bump := range []float64{0.01, 0.05, 0.10} {
			raised := make([]Input, len(base))
			copy(raised, base)

			raised[i].Similarity = min(raised[i].Similarity+bump, 1.0)
			if got := Aggregate(raised); got < baseScore {
				t.Fatalf("similarity bump on match %d lowered confidence: %v -> %v", i, baseScore, got)
			}

			copy(raised, base)
			raised[i].Credibility = min(raised[i].Credibility+bump*100, 100)
			if got := Aggregate(raised); got < baseScore {
				t.Fatalf("credibility bump on match %d lowered confidence: %v -> %v", i, baseScore, got)
			}
		}
	}
}

func TestTierWeight(t *testing.T) {
	t.Parallel()

	cases := map[credibility.Level]float64{
		credibility.LevelVeryHigh: 1.5,
		credibility.LevelHigh:     1.2,
		credibility.LevelMedium:   1.0,
		credibility.LevelLow:      0.8,
		credibility.LevelVeryLow:  0.6,
	}
	for tier, want := range cases {
		if got := TierWeight(tier); got != want {
			t.Fatalf("unexpected weight for %s: got %v want %v", tier, got, want)
		}
	}
	if got := TierWeight(credibility.Level("unknown")); got != 1.0 {
		t.Fatalf("expected unknown tier to weigh 1.0, got %v", got)
	}
}
