package similarity

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScoreIdenticalText(t *testing.T) {
	t.Parallel()

	text := "city council approves new downtown housing development"
	if got := Score(text, text, DetectionWeights()); !almostEqual(got, 1.0) {
		t.Fatalf("expected identical text to score 1.0, got %v", got)
	}
	if got := Score(text, text, VerificationWeights()); !almostEqual(got, 1.0) {
		t.Fatalf("expected identical text to score 1.0 under verification weights, got %v", got)
	}
}

func TestScoreIsSymmetric(t *testing.T) {
	t.Parallel()

	a := "the central bank raised interest rates on tuesday"
	b := "interest rates were raised by the central bank this week"
	if ab, ba := Score(a, b, DetectionWeights()), Score(b, a, DetectionWeights()); !almostEqual(ab, ba) {
		t.Fatalf("expected symmetric scores, got %v vs %v", ab, ba)
	}
}

func TestScoreDisjointTextIsZero(t *testing.T) {
	t.Parallel()

	// Same length, zero shared vocabulary: the length component must not
	// leak through.
	if got := Score("alpha beta gamma", "delta epsilon zeta", DetectionWeights()); got != 0 {
		t.Fatalf("expected disjoint texts to score 0.0, got %v", got)
	}
	if got := Score("", "some text", DetectionWeights()); got != 0 {
		t.Fatalf("expected empty probe to score 0.0, got %v", got)
	}
}

func TestScoreNormalizesInputs(t *testing.T) {
	t.Parallel()

	raw := "<p>The  QUICK brown fox</p>"
	canonical := "the quick brown fox"
	if got := Score(raw, canonical, DetectionWeights()); !almostEqual(got, 1.0) {
		t.Fatalf("expected markup variant to score 1.0 against canonical text, got %v", got)
	}
}

func TestScoreReversedOrderLosesOrderComponent(t *testing.T) {
	t.Parallel()

	a := "alpha beta gamma delta"
	b := "delta gamma beta alpha"

	// Full vocabulary and length overlap, fully inverted order: exactly the
	// jaccard and length weights survive.
	if got := Score(a, b, DetectionWeights()); !almostEqual(got, 0.7) {
		t.Fatalf("expected reversed text to score 0.7, got %v", got)
	}
	// Verification weights carry no order component at all.
	if got := Score(a, b, VerificationWeights()); !almostEqual(got, 1.0) {
		t.Fatalf("expected reversed text to score 1.0 under verification weights, got %v", got)
	}
}

func TestScoreRewritesShareOrderedCore(t *testing.T) {
	t.Parallel()

	shared := "officials said the flood damaged twelve homes across the river district on tuesday evening while residents moved to higher ground"
	a := shared + " repairs could take months"
	b := shared + " cleanup has already begun"

	got := Score(a, b, DetectionWeights())
	if got < 0.8 {
		t.Fatalf("expected lightly edited text to clear the duplicate threshold, got %v", got)
	}
	if got >= 1.0 {
		t.Fatalf("expected edited text to score below 1.0, got %v", got)
	}
}

func TestScoreWordsEmptyInputs(t *testing.T) {
	t.Parallel()

	if got := ScoreWords(nil, []string{"word"}, DetectionWeights()); got != 0 {
		t.Fatalf("expected 0.0 for nil probe, got %v", got)
	}
	if got := ScoreWords([]string{"word"}, nil, DetectionWeights()); got != 0 {
		t.Fatalf("expected 0.0 for nil candidate, got %v", got)
	}
}

func TestCommonWordCount(t *testing.T) {
	t.Parallel()

	if got := CommonWordCount("alpha beta gamma", "beta gamma delta"); got != 2 {
		t.Fatalf("unexpected common word count: %d", got)
	}
	if got := CommonWordCount("alpha alpha alpha", "alpha"); got != 1 {
		t.Fatalf("expected distinct-word counting, got %d", got)
	}
	if got := CommonWordCount("alpha", "beta"); got != 0 {
		t.Fatalf("expected zero common words, got %d", got)
	}
}
