package mastery

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeWord returns the canonical key of a target-language word. Every
// vocabulary lookup and insert goes through it so surface variants collapse
// onto one entry.
func NormalizeWord(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	// Casers keep state, so one per call
	return cases.Lower(language.Und).String(s)
}
