package models

import "time"

// VocabularyEntry is a learner's lifetime record for one normalized word
type VocabularyEntry struct {
	ID                   int64      `json:"id" db:"id"`
	UserID               int64      `json:"user_id" db:"user_id"`
	WordKey              string     `json:"word_key" db:"word_key"`         // normalized quechua form, unique per user
	SourceLabel          string     `json:"source_label" db:"source_label"` // detector label, display only
	GlossWord            string     `json:"gloss_word" db:"gloss_word"`     // spanish translation, display only
	DiscoveredVia        Mode       `json:"discovered_via" db:"discovered_via"`
	MasteryLevel         int        `json:"mastery_level" db:"mastery_level"`
	PreviousMasteryLevel int        `json:"previous_mastery_level" db:"previous_mastery_level"`
	ExercisesCompleted   int        `json:"exercises_completed" db:"exercises_completed"`
	ExercisesCorrect     int        `json:"exercises_correct" db:"exercises_correct"`
	ConsecutiveFailures  int        `json:"consecutive_failures" db:"consecutive_failures"`
	AbandonedExercises   int        `json:"abandoned_exercises" db:"abandoned_exercises"`
	TimesDetected        int        `json:"times_detected" db:"times_detected"`
	FirstSeenAt          time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt           *time.Time `json:"last_seen_at" db:"last_seen_at"`
	LastPracticedAt      *time.Time `json:"last_practiced_at" db:"last_practiced_at"`
	MasteredAt           *time.Time `json:"mastered_at" db:"mastered_at"`
}

// SuccessRate returns the share of completed exercises answered correctly
func (e *VocabularyEntry) SuccessRate() float64 {
	if e.ExercisesCompleted == 0 {
		return 0
	}
	return float64(e.ExercisesCorrect) / float64(e.ExercisesCompleted)
}
