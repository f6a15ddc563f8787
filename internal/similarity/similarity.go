package similarity

import (
	"sort"
	"strings"

	"horse.fit/firstprint/internal/normalize"
)

// Weights combines the three similarity components into one composite score.
// The two call sites intentionally weigh the components differently, so the
// weight set is a parameter rather than a constant.
type Weights struct {
	Jaccard   float64
	Length    float64
	WordOrder float64
}

// DetectionWeights is the composite used for general similarity search and
// duplicate detection at ingestion time.
func DetectionWeights() Weights {
	return Weights{Jaccard: 0.5, Length: 0.2, WordOrder: 0.3}
}

// VerificationWeights is the composite used inside the verification pipeline,
// which favors raw lexical evidence over structure.
func VerificationWeights() Weights {
	return Weights{Jaccard: 0.7, Length: 0.3, WordOrder: 0}
}

// Score computes the composite similarity of two texts in [0, 1]. Inputs are
// normalized before comparison, so callers may pass either raw or canonical
// text. Texts with disjoint word sets score exactly 0.0 regardless of the
// other components.
func Score(a, b string, w Weights) float64 {
	aWords := strings.Fields(normalize.Text(a))
	bWords := strings.Fields(normalize.Text(b))
	return ScoreWords(aWords, bWords, w)
}

// ScoreWords is Score over already-tokenized normalized word sequences.
func ScoreWords(aWords, bWords []string, w Weights) float64 {
	if len(aWords) == 0 || len(bWords) == 0 {
		return 0
	}

	jaccard := jaccardSimilarity(aWords, bWords)
	if jaccard == 0 {
		// No shared vocabulary: short-circuit rather than let the length
		// component report similarity between unrelated texts.
		return 0
	}

	score := w.Jaccard*jaccard +
		w.Length*lengthSimilarity(len(aWords), len(bWords)) +
		w.WordOrder*wordOrderSimilarity(aWords, bWords)

	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// CommonWordCount returns the number of distinct words shared by both texts.
// Used as word-overlap evidence on persisted match details.
func CommonWordCount(a, b string) int {
	aSet := wordSet(strings.Fields(normalize.Text(a)))
	bSet := wordSet(strings.Fields(normalize.Text(b)))

	common := 0
	for word := range aSet {
		if _, ok := bSet[word]; ok {
			common++
		}
	}
	return common
}

func jaccardSimilarity(aWords, bWords []string) float64 {
	aSet := wordSet(aWords)
	bSet := wordSet(bWords)

	intersection := 0
	for word := range aSet {
		if _, ok := bSet[word]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0
	}

	union := len(aSet) + len(bSet) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func lengthSimilarity(m, n int) float64 {
	if m <= 0 || n <= 0 {
		return 0
	}
	longer := m
	diff := m - n
	if n > m {
		longer = n
		diff = n - m
	}
	return 1 - float64(diff)/float64(longer)
}

// wordOrderSimilarity measures relative-order agreement of the words common
// to both sequences. Each common word is located at its first occurrence in
// each sequence; the score is one minus the fraction of discordant pairs
// (inversions), as in a rank-correlation statistic. Fewer than two common
// words carry no ordering evidence and score 0.0.
func wordOrderSimilarity(aWords, bWords []string) float64 {
	aPos := firstPositions(aWords)
	bPos := firstPositions(bWords)

	common := make([]string, 0, len(aPos))
	for word := range aPos {
		if _, ok := bPos[word]; ok {
			common = append(common, word)
		}
	}

	k := len(common)
	if k < 2 {
		return 0
	}

	// Order the common words by their position in A, then count pairs whose
	// relative order flips in B.
	sort.Slice(common, func(i, j int) bool {
		return aPos[common[i]] < aPos[common[j]]
	})

	inversions := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if bPos[common[i]] > bPos[common[j]] {
				inversions++
			}
		}
	}

	maxInversions := k * (k - 1) / 2
	return 1 - float64(inversions)/float64(maxInversions)
}

func firstPositions(words []string) map[string]int {
	positions := make(map[string]int, len(words))
	for i, word := range words {
		if _, seen := positions[word]; !seen {
			positions[word] = i
		}
	}
	return positions
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}
