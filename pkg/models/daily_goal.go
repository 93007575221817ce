package models

// DailyGoal tracks what a learner did on one calendar day against their targets
type DailyGoal struct {
	UserID         int64  `json:"user_id" db:"user_id"`
	Day            string `json:"day" db:"day"` // YYYY-MM-DD in the service time zone
	WordsDetected  int    `json:"words_detected" db:"words_detected"`
	WordsPracticed int    `json:"words_practiced" db:"words_practiced"`
	WordsMastered  int    `json:"words_mastered" db:"words_mastered"`
	DetectionGoal  int    `json:"detection_goal" db:"detection_goal"`
	PracticeGoal   int    `json:"practice_goal" db:"practice_goal"`
	MasteryGoal    int    `json:"mastery_goal" db:"mastery_goal"`
}

// IsComplete reports whether every target for the day was reached
func (g *DailyGoal) IsComplete() bool {
	return g.WordsDetected >= g.DetectionGoal &&
		g.WordsPracticed >= g.PracticeGoal &&
		g.WordsMastered >= g.MasteryGoal
}
