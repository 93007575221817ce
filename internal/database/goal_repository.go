package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"github.com/example/yachay/pkg/models"
)

// GoalCounter names a daily goal counter
type GoalCounter string

const (
	CounterDetected  GoalCounter = "words_detected"
	CounterPracticed GoalCounter = "words_practiced"
	CounterMastered  GoalCounter = "words_mastered"
)

// Targets are the daily goal defaults for new goal rows
type Targets struct {
	Detection int `mapstructure:"detection"`
	Practice  int `mapstructure:"practice"`
	Mastery   int `mapstructure:"mastery"`
}

// GoalRepository handles per-day goal counters
type GoalRepository struct {
	db sqlx.ExtContext
}

// NewGoalRepository creates a new repository instance
func NewGoalRepository(db sqlx.ExtContext) *GoalRepository {
	return &GoalRepository{db: db}
}

// Ensure returns the goal row for (userID, day), creating it with targets if needed
func (r *GoalRepository) Ensure(ctx context.Context, userID int64, day string, targets Targets) (*models.DailyGoal, error) {
	insert := `
		INSERT INTO daily_goals (user_id, day, detection_goal, practice_goal, mastery_goal)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(insert), userID, day, targets.Detection, targets.Practice, targets.Mastery); err != nil {
		return nil, eris.Wrap(err, "failed to create daily goal")
	}

	query := `
		SELECT user_id, day, words_detected, words_practiced, words_mastered,
			detection_goal, practice_goal, mastery_goal
		FROM daily_goals WHERE user_id = ? AND day = ?
	`
	var g models.DailyGoal
	if err := sqlx.GetContext(ctx, r.db, &g, r.db.Rebind(query), userID, day); err != nil {
		return nil, eris.Wrap(err, "failed to get daily goal")
	}
	return &g, nil
}

// Increment adds one to counter for (userID, day). The row must exist.
func (r *GoalRepository) Increment(ctx context.Context, userID int64, day string, counter GoalCounter) error {
	switch counter {
	case CounterDetected, CounterPracticed, CounterMastered:
	default:
		return eris.Errorf("unknown goal counter %q", counter)
	}
	col := string(counter)
	query := "UPDATE daily_goals SET " + col + " = " + col + " + 1 WHERE user_id = ? AND day = ?"
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), userID, day)
	if err != nil {
		return eris.Wrapf(err, "failed to increment %s", col)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
