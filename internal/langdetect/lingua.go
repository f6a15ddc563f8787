package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// maxSampleRunes caps the text handed to lingua; detection quality plateaus
// well below full article length.
const maxSampleRunes = 2000

// DetectISO6391 returns the two-letter language code of the text, or an empty
// string when there is not enough signal to detect one.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}
	if runes := []rune(sample); len(runes) > maxSampleRunes {
		sample = string(runes[:maxSampleRunes])
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// NormalizeCode reduces a language tag like "en-US" to its primary subtag.
// Returns an empty string for blank or malformed tags.
func NormalizeCode(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "_", "-")))
	if trimmed == "" {
		return ""
	}

	primary := trimmed
	if dash := strings.IndexByte(trimmed, '-'); dash >= 0 {
		primary = trimmed[:dash]
	}
	for _, r := range primary {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return primary
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
