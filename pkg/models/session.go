package models

import (
	"encoding/json"
	"time"
)

// SessionStatus is the lifecycle state of an exercise session
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionCompleted SessionStatus = "completed"
	SessionAbandoned SessionStatus = "abandoned"
)

// Session groups the exercises served to a learner in one sitting
type Session struct {
	ID        string        `json:"id" db:"id"`
	UserID    int64         `json:"user_id" db:"user_id"`
	Mode      Mode          `json:"mode" db:"mode"`
	Status    SessionStatus `json:"status" db:"status"`
	Total     int           `json:"total" db:"total"`
	Completed int           `json:"completed" db:"completed"`
	StartedAt time.Time     `json:"started_at" db:"started_at"`
	EndedAt   *time.Time    `json:"ended_at" db:"ended_at"`
	Items     []SessionItem `json:"items" db:"-"`
}

// SessionItem is one exercise inside a session
type SessionItem struct {
	SessionID  string          `json:"session_id" db:"session_id"`
	Position   int             `json:"position" db:"position"`
	Kind       string          `json:"kind" db:"kind"`
	WordKey    string          `json:"word_key" db:"word_key"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	Answered   bool            `json:"answered" db:"answered"`
	Correct    bool            `json:"correct" db:"correct"`
	AnsweredAt *time.Time      `json:"answered_at" db:"answered_at"`
}
