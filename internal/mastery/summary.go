package mastery

import (
	"sort"

	"github.com/example/yachay/pkg/models"
)

// Summary is the star breakdown of a learner's vocabulary
type Summary struct {
	TotalWords    int `json:"total_words"`
	MasteredWords int `json:"mastered_words"`
	InProgress    int `json:"in_progress"`
	NeedsPractice int `json:"needs_practice"`
	// Stars[i] counts words at level i
	Stars [MaxLevel + 1]int `json:"stars"`
}

// Summarize buckets entries by star level
func Summarize(entries []models.VocabularyEntry) Summary {
	var s Summary
	for _, e := range entries {
		s.TotalWords++
		lvl := clamp(e.MasteryLevel, 0, MaxLevel)
		s.Stars[lvl]++
		switch {
		case lvl == MaxLevel:
			s.MasteredWords++
		case lvl > 1:
			s.InProgress++
		}
		if lvl <= 2 {
			s.NeedsPractice++
		}
	}
	return s
}

// SuggestPractice returns up to limit unmastered entries, weakest first. Among
// equal levels, words never practiced come first, then the most recently practiced.
func SuggestPractice(entries []models.VocabularyEntry, limit int) []models.VocabularyEntry {
	out := make([]models.VocabularyEntry, 0, len(entries))
	for _, e := range entries {
		if e.MasteryLevel < MaxLevel {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.MasteryLevel != b.MasteryLevel {
			return a.MasteryLevel < b.MasteryLevel
		}
		switch {
		case a.LastPracticedAt == nil:
			return b.LastPracticedAt != nil
		case b.LastPracticedAt == nil:
			return false
		}
		return a.LastPracticedAt.After(*b.LastPracticedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// AbandonmentPreview tells a learner what abandoning an exercise on a word would cost
type AbandonmentPreview struct {
	WordKey        string `json:"word_key"`
	GlossWord      string `json:"gloss_word"`
	CurrentLevel   int    `json:"current_level"`
	WouldDegrade   bool   `json:"would_degrade"`
	PotentialLevel int    `json:"potential_level"`
}

// PreviewAbandonment evaluates the abandonment rules against entry without
// touching it. The daily ledger is not consulted, so a word already penalized
// today may be reported as degradable.
func (e *Engine) PreviewAbandonment(entry *models.VocabularyEntry, mode models.Mode) AbandonmentPreview {
	rules := e.policy.For(mode)
	now := e.now()
	would := entry.MasteryLevel > 1 &&
		entry.ConsecutiveFailures+rules.AbandonmentWeight >= rules.FailureLimit &&
		entry.ExercisesCompleted >= MinExercisesForReview &&
		!e.isRecent(entry, rules, now)

	p := AbandonmentPreview{
		WordKey:        entry.WordKey,
		GlossWord:      entry.GlossWord,
		CurrentLevel:   entry.MasteryLevel,
		WouldDegrade:   would,
		PotentialLevel: entry.MasteryLevel,
	}
	if would {
		p.PotentialLevel = clamp(entry.MasteryLevel-1, e.policy.floor(entry, mode), MaxLevel)
	}
	return p
}

// Age returns how many calendar days ago the entry was first seen
func (e *Engine) Age(entry *models.VocabularyEntry) int {
	return daysBetween(entry.FirstSeenAt, e.now(), e.loc)
}
