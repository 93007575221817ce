package models

import (
	"encoding/json"
	"time"
)

// AuditKind names an event in the activity stream
type AuditKind string

const (
	KindMasteryDecreased  AuditKind = "mastery_decreased"
	KindExerciseAbandoned AuditKind = "exercise_abandoned"
	KindExerciseCompleted AuditKind = "exercise_completed"
	KindWordAutoCreated   AuditKind = "word_auto_created"
	KindWordMastered      AuditKind = "word_mastered"
	KindDetectionSession  AuditKind = "detection_session"
)

// AuditEvent is an append-only record of something that happened to a learner's word
type AuditEvent struct {
	ID        string          `json:"id" db:"id"`
	UserID    int64           `json:"user_id" db:"user_id"`
	Kind      AuditKind       `json:"kind" db:"kind"`
	WordKey   string          `json:"word_key" db:"word_key"`
	Mode      Mode            `json:"mode" db:"mode"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// DegradationPayload is attached to mastery_decreased events
type DegradationPayload struct {
	PreviousLevel int    `json:"previous_level"`
	NewLevel      int    `json:"new_level"`
	Reason        string `json:"reason"`
}

// AbandonmentPayload is attached to exercise_abandoned events
type AbandonmentPayload struct {
	ConsecutiveFailures int  `json:"consecutive_failures"`
	MasteryLevel        int  `json:"mastery_level"`
	DidDegrade          bool `json:"did_degrade"`
}

// CompletionPayload is attached to exercise_completed events
type CompletionPayload struct {
	SessionID     string `json:"session_id,omitempty"`
	ExerciseKind  string `json:"exercise_kind,omitempty"`
	Correct       bool   `json:"correct"`
	MasteryLevel  int    `json:"mastery_level"`
	PreviousLevel int    `json:"previous_level"`
}

// DetectionPayload is attached to detection_session events
type DetectionPayload struct {
	Primary           DetectedObject   `json:"primary"`
	Secondary         []DetectedObject `json:"secondary,omitempty"`
	AddedToVocabulary bool             `json:"added_to_vocabulary"`
}

// DetectedObject is one translated detection as recorded in the activity stream
type DetectedObject struct {
	Label      string  `json:"label"`
	Spanish    string  `json:"spanish"`
	Quechua    string  `json:"quechua"`
	Confidence float64 `json:"confidence"`
}
