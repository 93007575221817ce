package exercise

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/yachay/pkg/models"
)

var (
	dog  = models.Translation{Label: "dog", Spanish: "perro", Quechua: "allqu"}
	pool = []models.Translation{
		dog,
		{Label: "cat", Spanish: "gato", Quechua: "michi"},
		{Label: "eye", Spanish: "ojo", Quechua: "ñawi"},
		{Label: "book", Spanish: "libro", Quechua: "qillqa"},
		{Label: "chair", Spanish: "silla", Quechua: "tiana"},
		{Label: "puppy", Spanish: "cachorro", Quechua: "Allqu"},
	}
)

func newTestGenerator() *Generator {
	return NewGenerator(rand.New(rand.NewSource(7)))
}

func TestMultipleChoice(t *testing.T) {
	ex, err := newTestGenerator().Build(KindMultipleChoice, dog, 1, pool)
	require.NoError(t, err)
	mc := ex.(*MultipleChoice)

	assert.Len(t, mc.Options, 4)
	assert.Contains(t, mc.Options, "allqu")
	assert.NotContains(t, mc.Options, "Allqu")
	seen := map[string]bool{}
	for _, o := range mc.Options {
		assert.False(t, seen[o], "duplicate option %q", o)
		seen[o] = true
	}
	assert.Contains(t, mc.Question(), "perro")
	assert.Equal(t, "allqu", mc.Word())

	assert.True(t, mc.Check("allqu"))
	assert.True(t, mc.Check("  ALLQU "))
	assert.False(t, mc.Check("michi"))
	assert.False(t, mc.Check(""))
}

func TestMultipleChoiceSmallPool(t *testing.T) {
	ex, err := newTestGenerator().Build(KindMultipleChoice, dog, 1, []models.Translation{dog})
	require.NoError(t, err)
	assert.Equal(t, []string{"allqu"}, ex.(*MultipleChoice).Options)
}

func TestFillBlankRevealsFewerLettersAtHigherLevels(t *testing.T) {
	cat := pool[1]
	cases := []struct {
		level   int
		visible int
	}{
		{1, 4},
		{3, 2},
		{5, 1},
		{9, 1},
	}
	for _, c := range cases {
		ex, err := newTestGenerator().Build(KindFillBlank, cat, c.level, nil)
		require.NoError(t, err)
		fb := ex.(*FillBlank)
		assert.Equal(t, c.visible, 5-strings.Count(fb.Blanked, "_"), "level %d", c.level)
		assert.Equal(t, 5, utf8.RuneCountInString(fb.Blanked))
		assert.True(t, fb.Check("michi"))
	}
}

func TestFillBlankKeepsMultibyteLetters(t *testing.T) {
	ex, err := newTestGenerator().Build(KindFillBlank, pool[2], 1, nil)
	require.NoError(t, err)
	fb := ex.(*FillBlank)
	assert.Equal(t, 4, utf8.RuneCountInString(fb.Blanked))
	assert.Contains(t, fb.Hint, "'ñ'")
}

func TestMatching(t *testing.T) {
	ex, err := newTestGenerator().Build(KindMatching, dog, 2, pool)
	require.NoError(t, err)
	m := ex.(*Matching)

	assert.Len(t, m.Pairs, 4)
	assert.Contains(t, m.Pairs, Pair{Spanish: "perro", Quechua: "allqu"})

	assert.True(t, m.Check("perro→allqu"))
	assert.True(t, m.Check("Perro → Allqu"))
	assert.True(t, m.Check("allqu"))
	assert.False(t, m.Check("gato→allqu"))
	assert.False(t, m.Check("perro→michi"))
	assert.False(t, m.Check("perro→allqu→allqu"))
}

func TestPronunciation(t *testing.T) {
	ex, err := newTestGenerator().Build(KindPronunciation, dog, 1, nil)
	require.NoError(t, err)
	p := ex.(*Pronunciation)

	assert.Equal(t, "Pronuncia cada sílaba lentamente: al - lq - u", p.Guide)
	assert.True(t, p.Check("allqu"))
	assert.True(t, p.Check("allqo"))
	assert.True(t, p.Check("el perro es allqu"))
	assert.False(t, p.Check("michi"))
	assert.False(t, p.Check(""))
}

func TestAnagram(t *testing.T) {
	ex, err := newTestGenerator().Build(KindAnagram, pool[1], 1, nil)
	require.NoError(t, err)
	a := ex.(*Anagram)

	assert.NotEqual(t, "michi", a.Scrambled)
	assert.ElementsMatch(t, []rune("michi"), []rune(a.Scrambled))
	assert.Contains(t, a.Question(), a.Scrambled)
	assert.True(t, a.Check("michi"))
	assert.False(t, a.Check(a.Scrambled))
}

func TestBuildUnknownKind(t *testing.T) {
	_, err := newTestGenerator().Build(Kind("essay"), dog, 1, pool)
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestPickSkipsMatchingWithoutPool(t *testing.T) {
	g := newTestGenerator()
	for i := 0; i < 200; i++ {
		assert.NotEqual(t, KindMatching, g.Pick(0))
	}
}

func TestEncodeDecode(t *testing.T) {
	g := newTestGenerator()
	for _, kind := range Kinds {
		ex, err := g.Build(kind, dog, 2, pool)
		require.NoError(t, err)

		gotKind, raw, err := Encode(ex)
		require.NoError(t, err)
		assert.Equal(t, kind, gotKind)

		back, err := Decode(gotKind, raw)
		require.NoError(t, err)
		assert.Equal(t, ex, back)
		assert.True(t, back.Check("allqu"), "kind %s", kind)
	}

	_, err := Decode(Kind("essay"), []byte(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownKind))
}
