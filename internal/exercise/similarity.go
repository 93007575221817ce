package exercise

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PassSimilarity is the score a transcript needs to pass a pronunciation exercise
const PassSimilarity = 0.7

// quechua spellings that sound alike
var phonetic = strings.NewReplacer(
	"kh", "k",
	"qh", "k",
	"q", "k",
	"j", "h",
	"c", "k",
)

// Fold lowercases s, strips accents and non-ascii letters and merges
// spellings that sound alike
func Fold(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
		norm.NFC,
	)
	folded, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return ""
	}
	return phonetic.Replace(folded)
}

// Similarity scores how close a transcript is to target, in [0, 1]. Plain
// edit distance is penalized for a wrong first letter, a length mismatch
// and errors in short words.
func Similarity(transcript, target string) float64 {
	a, b := Fold(transcript), Fold(target)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	// a phrase that contains the word counts as a good attempt
	if words := strings.Fields(a); len(words) > 1 {
		for _, w := range words {
			if w == b {
				return 0.85
			}
		}
	}

	dist := levenshtein.Distance(a, b, nil)
	maxLen := max(len(a), len(b))
	sim := 1 - float64(dist)/float64(maxLen)

	if a[0] != b[0] {
		sim *= 0.6
	}
	if diff := abs(len(a) - len(b)); diff > 1 {
		sim *= 1 - 0.1*float64(diff)
	}
	if len(b) <= 5 && dist > 1 {
		sim *= 0.8
	}
	if sim < 0.5 {
		return max(0, sim*0.8)
	}
	return min(1, sim)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
