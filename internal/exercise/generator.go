package exercise

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/pkg/models"
)

const distractorCount = 3

var (
	choiceTemplates = []string{
		"¡Desafío quechua! Un viajero en Cusco te pregunta por '%s'. ¿Cómo le responderías?",
		"¡Relámpago quechua! ¿Cómo dirías '%s' en el idioma de los incas?",
		"¿Cuál es la palabra quechua para '%s'?",
	}
	blankTemplates = []string{
		"Un antiguo manuscrito tiene la palabra %s. ¿Puedes completarla? (Significa '%s')",
		"¡Desafío de escritura! Completa: %s ('%s' en español)",
	}
	matchingTemplates = []string{
		"Relaciona cada palabra en español con su traducción en quechua. ¡Encuentra '%s'!",
		"Empareja cada palabra española con su equivalente quechua. Incluye '%s'.",
	}
	pronunciationTemplates = []string{
		"Estás en un mercado de Cusco y quieres pedir '%s'. Dilo en quechua: %s",
		"¡Desafío de pronunciación! Intenta decir '%s' (%s) en quechua.",
	}
	anagramTemplates = []string{
		"Ordena las letras para formar la palabra quechua para '%s': %s",
		"Las letras están desordenadas. Forma la palabra que significa '%s': %s",
	}
)

// Generator builds exercises from catalog translations
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator creates a generator. A nil rnd is seeded from the clock.
func NewGenerator(rnd *rand.Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rnd: rnd}
}

// Build creates one exercise of kind for target. level tunes difficulty and
// pool supplies distractors; entries of pool equal to target are skipped.
func (g *Generator) Build(kind Kind, target models.Translation, level int, pool []models.Translation) (Exercise, error) {
	switch kind {
	case KindMultipleChoice:
		return g.multipleChoice(target, pool), nil
	case KindFillBlank:
		return g.fillBlank(target, level), nil
	case KindMatching:
		return g.matching(target, pool), nil
	case KindPronunciation:
		return g.pronunciation(target), nil
	case KindAnagram:
		return g.anagram(target), nil
	}
	return nil, eris.Wrapf(ErrUnknownKind, "%q", kind)
}

// Pick chooses a kind for the next exercise. Matching needs a pool to pair
// against, so it is skipped when there is none.
func (g *Generator) Pick(poolSize int) Kind {
	kinds := Kinds
	if poolSize < distractorCount {
		kinds = []Kind{KindMultipleChoice, KindFillBlank, KindPronunciation, KindAnagram}
	}
	return kinds[g.rnd.Intn(len(kinds))]
}

func (g *Generator) template(templates []string) string {
	return templates[g.rnd.Intn(len(templates))]
}

func (g *Generator) multipleChoice(target models.Translation, pool []models.Translation) *MultipleChoice {
	options := []string{target.Quechua}
	for _, d := range g.distractors(target, pool) {
		options = append(options, d.Quechua)
	}
	g.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return &MultipleChoice{
		Target:  target.Quechua,
		Gloss:   target.Spanish,
		Prompt:  fmt.Sprintf(g.template(choiceTemplates), target.Spanish),
		Options: options,
	}
}

func (g *Generator) fillBlank(target models.Translation, level int) *FillBlank {
	word := []rune(target.Quechua)
	blanked := make([]rune, len(word))
	for i := range blanked {
		blanked[i] = '_'
	}

	// higher levels reveal fewer letters
	visible := max(1, len(word)-clampLevel(level))
	for _, pos := range g.rnd.Perm(len(word))[:min(visible, len(word))] {
		blanked[pos] = word[pos]
	}

	hint := ""
	if len(word) > 0 {
		hint = fmt.Sprintf("La palabra tiene %d letras y empieza con '%c'", len(word), word[0])
	}
	return &FillBlank{
		Target:  target.Quechua,
		Gloss:   target.Spanish,
		Prompt:  fmt.Sprintf(g.template(blankTemplates), string(blanked), target.Spanish),
		Blanked: string(blanked),
		Hint:    hint,
	}
}

func (g *Generator) matching(target models.Translation, pool []models.Translation) *Matching {
	pairs := []Pair{{Spanish: target.Spanish, Quechua: target.Quechua}}
	for _, d := range g.distractors(target, pool) {
		pairs = append(pairs, Pair{Spanish: d.Spanish, Quechua: d.Quechua})
	}
	g.rnd.Shuffle(len(pairs), func(i, j int) {
		pairs[i], pairs[j] = pairs[j], pairs[i]
	})

	return &Matching{
		Target: target.Quechua,
		Gloss:  target.Spanish,
		Prompt: fmt.Sprintf(g.template(matchingTemplates), target.Spanish),
		Pairs:  pairs,
	}
}

func (g *Generator) pronunciation(target models.Translation) *Pronunciation {
	guide := strings.Join(syllables(target.Quechua), " - ")
	return &Pronunciation{
		Target:        target.Quechua,
		Gloss:         target.Spanish,
		Prompt:        fmt.Sprintf(g.template(pronunciationTemplates), target.Spanish, target.Quechua),
		Guide:         "Pronuncia cada sílaba lentamente: " + guide,
		MinSimilarity: PassSimilarity,
	}
}

func (g *Generator) anagram(target models.Translation) *Anagram {
	letters := []rune(target.Quechua)
	scrambled := string(letters)
	// a shuffle may land on the word itself
	for attempt := 0; attempt < 5 && scrambled == target.Quechua && len(letters) > 1; attempt++ {
		g.rnd.Shuffle(len(letters), func(i, j int) {
			letters[i], letters[j] = letters[j], letters[i]
		})
		scrambled = string(letters)
	}

	return &Anagram{
		Target:    target.Quechua,
		Gloss:     target.Spanish,
		Prompt:    fmt.Sprintf(g.template(anagramTemplates), target.Spanish, scrambled),
		Scrambled: scrambled,
		Hint:      fmt.Sprintf("Esta palabra significa '%s' en español", target.Spanish),
	}
}

// distractors picks up to distractorCount translations of pool other than
// target, without repeating a quechua word
func (g *Generator) distractors(target models.Translation, pool []models.Translation) []models.Translation {
	candidates := make([]models.Translation, len(pool))
	copy(candidates, pool)
	g.rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	seen := map[string]bool{mastery.NormalizeWord(target.Quechua): true}
	picked := make([]models.Translation, 0, distractorCount)
	for _, c := range candidates {
		if len(picked) == distractorCount {
			break
		}
		key := mastery.NormalizeWord(c.Quechua)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		picked = append(picked, c)
	}
	return picked
}

// syllables splits word into two-letter chunks for the pronunciation guide
func syllables(word string) []string {
	letters := []rune(word)
	var out []string
	for i := 0; i < len(letters); i += 2 {
		out = append(out, string(letters[i:min(i+2, len(letters))]))
	}
	return out
}

func clampLevel(level int) int {
	return min(max(level, 1), 5)
}
