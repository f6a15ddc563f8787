package langdetect

import "testing"

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	if got := NormalizeCode(" EN-us "); got != "en" {
		t.Fatalf("unexpected normalized code: %q", got)
	}
	if got := NormalizeCode("pt_BR"); got != "pt" {
		t.Fatalf("unexpected normalized code: %q", got)
	}
	if got := NormalizeCode("de"); got != "de" {
		t.Fatalf("unexpected normalized code: %q", got)
	}
	if got := NormalizeCode(" "); got != "" {
		t.Fatalf("expected empty code for blank input, got %q", got)
	}
	if got := NormalizeCode("e1-US"); got != "" {
		t.Fatalf("expected empty code for malformed tag, got %q", got)
	}
}

func TestDetectISO6391ShortInput(t *testing.T) {
	t.Parallel()

	// Fewer than six letters carries no signal; the detector is never consulted.
	if got := DetectISO6391("ab 12"); got != "" {
		t.Fatalf("expected empty code for short input, got %q", got)
	}
	if got := DetectISO6391("   "); got != "" {
		t.Fatalf("expected empty code for blank input, got %q", got)
	}
}
