package models

// Profile holds a learner's aggregate counters
type Profile struct {
	UserID        int64   `json:"user_id" db:"user_id"`
	TotalWords    int     `json:"total_words" db:"total_words"`
	MasteredWords int     `json:"mastered_words" db:"mastered_words"`
	StreakDays    int     `json:"streak_days" db:"streak_days"`
	MaxStreak     int     `json:"max_streak" db:"max_streak"`
	LastActivity  *string `json:"last_activity" db:"last_activity"` // YYYY-MM-DD
}
