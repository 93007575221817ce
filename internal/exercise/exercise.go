// Package exercise builds and checks the exercises served in a session.
package exercise

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/example/yachay/internal/mastery"
)

// Kind represents different types of exercises
type Kind string

const (
	KindMultipleChoice Kind = "multiple_choice"
	KindFillBlank      Kind = "fill_blanks"
	KindMatching       Kind = "matching"
	KindPronunciation  Kind = "pronunciation"
	KindAnagram        Kind = "anagram"
)

// Kinds lists every exercise kind in serving order
var Kinds = []Kind{KindMultipleChoice, KindFillBlank, KindMatching, KindPronunciation, KindAnagram}

// ErrUnknownKind is returned when decoding an unsupported kind
var ErrUnknownKind = eris.New("exercise: unknown kind")

// Exercise is one question about a target word
type Exercise interface {
	Kind() Kind
	// Word is the quechua word the exercise drills
	Word() string
	// Question is the text shown to the learner
	Question() string
	// Check judges a typed, selected or transcribed answer
	Check(answer string) bool
}

// MultipleChoice asks for the quechua word among distractors
type MultipleChoice struct {
	Target  string   `json:"target"`
	Gloss   string   `json:"gloss"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

func (e *MultipleChoice) Kind() Kind       { return KindMultipleChoice }
func (e *MultipleChoice) Word() string     { return e.Target }
func (e *MultipleChoice) Question() string { return e.Prompt }
func (e *MultipleChoice) Check(answer string) bool {
	return sameWord(answer, e.Target)
}

// FillBlank shows the word with some letters hidden
type FillBlank struct {
	Target  string `json:"target"`
	Gloss   string `json:"gloss"`
	Prompt  string `json:"prompt"`
	Blanked string `json:"blanked"`
	Hint    string `json:"hint"`
}

func (e *FillBlank) Kind() Kind       { return KindFillBlank }
func (e *FillBlank) Word() string     { return e.Target }
func (e *FillBlank) Question() string { return e.Prompt }
func (e *FillBlank) Check(answer string) bool {
	return sameWord(answer, e.Target)
}

// Pair is one spanish-quechua couple of a matching exercise
type Pair struct {
	Spanish string `json:"spanish"`
	Quechua string `json:"quechua"`
}

// Matching asks the learner to pair the target with its translation
type Matching struct {
	Target string `json:"target"`
	Gloss  string `json:"gloss"`
	Prompt string `json:"prompt"`
	Pairs  []Pair `json:"pairs"`
}

// PairSeparator joins the two sides of a matching answer
const PairSeparator = "→"

func (e *Matching) Kind() Kind       { return KindMatching }
func (e *Matching) Word() string     { return e.Target }
func (e *Matching) Question() string { return e.Prompt }

// Check accepts "spanish→quechua" or the bare quechua word
func (e *Matching) Check(answer string) bool {
	spanish, quechua, paired := strings.Cut(answer, PairSeparator)
	if !paired {
		return sameWord(answer, e.Target)
	}
	if strings.Contains(quechua, PairSeparator) {
		return false
	}
	return sameWord(spanish, e.Gloss) && sameWord(quechua, e.Target)
}

// Pronunciation asks the learner to say the word out loud
type Pronunciation struct {
	Target        string  `json:"target"`
	Gloss         string  `json:"gloss"`
	Prompt        string  `json:"prompt"`
	Guide         string  `json:"guide"`
	MinSimilarity float64 `json:"min_similarity"`
}

func (e *Pronunciation) Kind() Kind       { return KindPronunciation }
func (e *Pronunciation) Word() string     { return e.Target }
func (e *Pronunciation) Question() string { return e.Prompt }

// Check compares a speech transcript with the target
func (e *Pronunciation) Check(transcript string) bool {
	min := e.MinSimilarity
	if min <= 0 {
		min = PassSimilarity
	}
	return Similarity(transcript, e.Target) >= min
}

// Anagram shows the letters of the word shuffled
type Anagram struct {
	Target    string `json:"target"`
	Gloss     string `json:"gloss"`
	Prompt    string `json:"prompt"`
	Scrambled string `json:"scrambled"`
	Hint      string `json:"hint"`
}

func (e *Anagram) Kind() Kind       { return KindAnagram }
func (e *Anagram) Word() string     { return e.Target }
func (e *Anagram) Question() string { return e.Prompt }
func (e *Anagram) Check(answer string) bool {
	return sameWord(answer, e.Target)
}

func sameWord(answer, target string) bool {
	a := mastery.NormalizeWord(answer)
	return a != "" && a == mastery.NormalizeWord(target)
}

// Encode returns the kind and JSON body of e for storage
func Encode(e Exercise) (Kind, json.RawMessage, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", nil, eris.Wrapf(err, "exercise: encode %s", e.Kind())
	}
	return e.Kind(), raw, nil
}

// Decode rebuilds an exercise stored with Encode
func Decode(kind Kind, raw json.RawMessage) (Exercise, error) {
	var e Exercise
	switch kind {
	case KindMultipleChoice:
		e = &MultipleChoice{}
	case KindFillBlank:
		e = &FillBlank{}
	case KindMatching:
		e = &Matching{}
	case KindPronunciation:
		e = &Pronunciation{}
	case KindAnagram:
		e = &Anagram{}
	default:
		return nil, eris.Wrapf(ErrUnknownKind, "%q", kind)
	}
	if err := json.Unmarshal(raw, e); err != nil {
		return nil, eris.Wrapf(err, "exercise: decode %s", kind)
	}
	return e, nil
}
