package confidence

import "horse.fit/firstprint/internal/credibility"

// Input is one matched article's contribution to the aggregate confidence.
type Input struct {
	// Similarity is the match's composite similarity in [0, 1].
	Similarity float64
	// Credibility is the match's credibility score in [0, 100].
	Credibility float64
	// Tier is the matched source's credibility bucket.
	Tier credibility.Level
	// Exact marks an exact-hash match.
	Exact bool
}

const (
	similarityWeight  = 0.6
	credibilityWeight = 0.4

	exactMatchBonus      = 1.10
	highCredibilityBonus = 1.05
	highCredibilityFloor = 80.0
)

// Aggregate combines the per-match scores into one confidence value in
// [0, 100]. Each match contributes 0.6·similarity(scaled to 100) +
// 0.4·credibility, weighted by its source's credibility tier in a weighted
// mean. An exact match raises the mean by 10%, and a match with credibility
// of at least 80 raises it by a further 5%. Zero matches aggregate to 0.0.
func Aggregate(inputs []Input) float64 {
	if len(inputs) == 0 {
		return 0
	}

	var weightedSum, weightTotal float64
	hasExact := false
	hasHighCredibility := false

	for _, in := range inputs {
		base := similarityWeight*in.Similarity*100 + credibilityWeight*in.Credibility
		weight := TierWeight(in.Tier)
		weightedSum += weight * base
		weightTotal += weight

		if in.Exact {
			hasExact = true
		}
		if in.Credibility >= highCredibilityFloor {
			hasHighCredibility = true
		}
	}
	if weightTotal <= 0 {
		return 0
	}

	score := weightedSum / weightTotal
	if hasExact {
		score *= exactMatchBonus
	}
	if hasHighCredibility {
		score *= highCredibilityBonus
	}

	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// TierWeight returns the weighted-mean multiplier for a credibility tier.
func TierWeight(tier credibility.Level) float64 {
	switch tier {
	case credibility.LevelVeryHigh:
		return 1.5
	case credibility.LevelHigh:
		return 1.2
	case credibility.LevelLow:
		return 0.8
	case credibility.LevelVeryLow:
		return 0.6
	default:
		return 1.0
	}
}
