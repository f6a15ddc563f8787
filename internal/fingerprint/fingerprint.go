package fingerprint

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"horse.fit/firstprint/internal/normalize"
)

// Algorithm selects the digest used for exact-duplicate lookup.
type Algorithm string

const (
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmMD5    Algorithm = "md5"
	AlgorithmSHA1   Algorithm = "sha1"

	DefaultAlgorithm = AlgorithmSHA256
)

const (
	// maxTokenWords bounds the fingerprint to the first 20 surviving words.
	maxTokenWords = 20
	// minWordLength drops words of length <= 2 from the fingerprint.
	minWordLength = 3
)

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "an": {}, "and": {},
	"are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "but": {},
	"by": {}, "can": {}, "could": {}, "did": {}, "do": {}, "does": {},
	"for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "he": {},
	"her": {}, "his": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "its": {}, "may": {}, "might": {}, "must": {}, "no": {},
	"not": {}, "of": {}, "on": {}, "or": {}, "she": {}, "should": {},
	"so": {}, "than": {}, "that": {}, "the": {}, "their": {}, "then": {},
	"these": {}, "they": {}, "this": {}, "those": {}, "to": {}, "was": {},
	"were": {}, "will": {}, "with": {}, "would": {},
}

// ParseAlgorithm validates a configured hash algorithm name.
func ParseAlgorithm(raw string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(raw))) {
	case AlgorithmSHA256, "":
		return AlgorithmSHA256, nil
	case AlgorithmMD5:
		return AlgorithmMD5, nil
	case AlgorithmSHA1:
		return AlgorithmSHA1, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q (want sha256, md5 or sha1)", raw)
	}
}

// Hash normalizes content and returns its digest under the given algorithm.
// Equal normalized inputs always produce equal digests.
func Hash(content string, algo Algorithm) []byte {
	normalized := normalize.Text(content)
	switch algo {
	case AlgorithmMD5:
		sum := md5.Sum([]byte(normalized))
		return sum[:]
	case AlgorithmSHA1:
		sum := sha1.Sum([]byte(normalized))
		return sum[:]
	default:
		sum := sha256.Sum256([]byte(normalized))
		return sum[:]
	}
}

// HexHash returns the digest of content as a lowercase hex string.
func HexHash(content string, algo Algorithm) string {
	return hex.EncodeToString(Hash(content, algo))
}

// Token builds the coarse lexical fingerprint used for candidate retrieval:
// normalize, drop stop words and words shorter than three characters, keep at
// most the first 20 survivors, then sort them and join with single spaces.
// Documents sharing core content words map to identical or near-identical
// tokens regardless of word order or stop-word usage.
func Token(content string) string {
	words := normalize.Words(content)
	if len(words) == 0 {
		return ""
	}

	kept := make([]string, 0, maxTokenWords)
	for _, word := range words {
		if _, ok := stopWords[word]; ok {
			continue
		}
		if utf8.RuneCountInString(word) < minWordLength {
			continue
		}
		kept = append(kept, word)
		if len(kept) == maxTokenWords {
			break
		}
	}
	if len(kept) == 0 {
		return ""
	}

	sort.Strings(kept)
	return strings.Join(kept, " ")
}

// IsStopWord reports whether the normalized word is on the fixed stop list.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}
