package exercise

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Ñawi":    "nawi",
		"Qhapaq":  "kapak",
		"khipu":   "kipu",
		"qocha":   "kokha",
		"Jatun":   "hatun",
		"  inti ": "inti",
		"":        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Fold(in), "Fold(%q)", in)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("ñawi", "ñawi"))
	assert.Equal(t, 1.0, Similarity("kocha", "qocha"))
	assert.Equal(t, 0.85, Similarity("el perro es allqu", "allqu"))
	assert.Equal(t, 0.0, Similarity("", "allqu"))
	assert.Equal(t, 0.0, Similarity("allqu", ""))

	assert.InDelta(t, 0.8, Similarity("allqo", "allqu"), 1e-9)
	assert.Less(t, Similarity("michi", "wasi"), PassSimilarity)
	assert.Less(t, Similarity("ballqu", "allqu"), Similarity("allqo", "allqu"))

	for _, pair := range [][2]string{{"a", "b"}, {"runa", "runakuna"}, {"qillqa", "kilka"}} {
		s := Similarity(pair[0], pair[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestSimilarity_EditDistance(t *testing.T) {
	// one substitution in eight letters
	assert.InDelta(t, 0.875, Similarity("runakona", "runakuna"), 1e-9)
	// four insertions, a length penalty and the low-score damping
	assert.InDelta(t, 0.24, Similarity("runa", "runakuna"), 1e-9)
}
