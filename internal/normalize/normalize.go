package normalize

import (
	"strings"
	"unicode"
)

// Text canonicalizes raw article text for hashing and similarity comparison:
// markup is stripped, character entities are dropped, whitespace collapses to
// single spaces, and the result is trimmed and lower-cased.
//
// Text is idempotent: Text(Text(x)) == Text(x).
func Text(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	stripped := stripMarkup(trimmed)
	stripped = dropEntities(stripped)

	var b strings.Builder
	b.Grow(len(stripped))
	lastSpace := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

// Words returns the whitespace-delimited word sequence of the canonical text.
func Words(raw string) []string {
	normalized := Text(raw)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

// stripMarkup removes tag-like regions, replacing each with a space so that
// adjacent text nodes do not fuse into one word.
func stripMarkup(input string) string {
	if !strings.ContainsRune(input, '<') {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	inTag := false
	for _, r := range input {
		switch {
		case inTag:
			if r == '>' {
				inTag = false
			}
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dropEntities replaces HTML character references such as &amp; or &#8212;
// with a space. Unterminated references are kept verbatim.
func dropEntities(input string) string {
	if !strings.ContainsRune(input, '&') {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '&' {
			b.WriteRune(runes[i])
			continue
		}

		end := -1
		for j := i + 1; j < len(runes) && j <= i+10; j++ {
			r := runes[j]
			if r == ';' {
				end = j
				break
			}
			if !isEntityRune(r) {
				break
			}
		}
		if end > i+1 {
			b.WriteRune(' ')
			i = end
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

func isEntityRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '#':
		return true
	default:
		return false
	}
}
