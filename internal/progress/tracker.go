// Package progress keeps the daily goal counters and streaks that sit around
// the mastery engine.
package progress

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/pkg/models"
)

// Tracker applies the caller-side bookkeeping of an engine call
type Tracker struct {
	store   *database.Store
	targets database.Targets
	now     func() time.Time
	loc     *time.Location
	log     *zap.Logger
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the time zone that defines calendar days
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// NewTracker creates a tracker that opens goal rows with targets
func NewTracker(store *database.Store, targets database.Targets, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		targets: targets,
		now:     time.Now,
		loc:     time.UTC,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.Named("progress")
	return t
}

// Practiced counts one answered exercise, and a mastered word whenever the
// answer raised it to five stars. A word regained after losing a star counts
// again towards the day's goal.
func (t *Tracker) Practiced(ctx context.Context, userID int64, res *mastery.Result) (*models.DailyGoal, error) {
	counters := []database.GoalCounter{database.CounterPracticed}
	if res != nil && res.MasteryUpdated && res.CurrentLevel == mastery.MaxLevel {
		counters = append(counters, database.CounterMastered)
	}
	return t.bump(ctx, userID, counters...)
}

// Detected counts one detection session
func (t *Tracker) Detected(ctx context.Context, userID int64) (*models.DailyGoal, error) {
	return t.bump(ctx, userID, database.CounterDetected)
}

// Today returns today's goal of a learner without counting anything
func (t *Tracker) Today(ctx context.Context, userID int64) (*models.DailyGoal, error) {
	g, err := database.NewGoalRepository(t.store.DB()).Ensure(ctx, userID, t.day(), t.targets)
	if err != nil {
		return nil, eris.Wrap(err, "progress: today")
	}
	return g, nil
}

// Profile returns the learner's aggregate counters
func (t *Tracker) Profile(ctx context.Context, userID int64) (*models.Profile, error) {
	p, err := database.NewProfileRepository(t.store.DB()).Get(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "progress: profile")
	}
	return p, nil
}

func (t *Tracker) bump(ctx context.Context, userID int64, counters ...database.GoalCounter) (*models.DailyGoal, error) {
	day := t.day()
	var goal *models.DailyGoal
	err := t.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		goals := database.NewGoalRepository(tx)
		if _, err := goals.Ensure(ctx, userID, day, t.targets); err != nil {
			return err
		}
		for _, c := range counters {
			if err := goals.Increment(ctx, userID, day, c); err != nil {
				return err
			}
		}
		if err := t.touchStreak(ctx, tx, userID, day); err != nil {
			return err
		}
		var err error
		goal, err = goals.Ensure(ctx, userID, day, t.targets)
		return err
	})
	if err != nil {
		return nil, eris.Wrap(err, "progress: update daily goal")
	}
	if goal.IsComplete() {
		t.log.Debug("daily goal complete", zap.Int64("user_id", userID), zap.String("day", day))
	}
	return goal, nil
}

func (t *Tracker) touchStreak(ctx context.Context, tx *sqlx.Tx, userID int64, day string) error {
	profiles := database.NewProfileRepository(tx)
	if err := profiles.Ensure(ctx, userID); err != nil {
		return err
	}
	p, err := profiles.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !AdvanceStreak(p, day) {
		return nil
	}
	return profiles.SaveStreak(ctx, p)
}

func (t *Tracker) day() string {
	return mastery.Day(t.now(), t.loc)
}

// AdvanceStreak records activity on day. The streak grows when the previous
// activity was the day before, restarts at 1 after a gap and is unchanged for
// a second activity on the same day. It reports whether p changed.
func AdvanceStreak(p *models.Profile, day string) bool {
	if p.LastActivity != nil && *p.LastActivity == day {
		return false
	}

	prev := p.StreakDays
	p.StreakDays = 1
	if p.LastActivity != nil {
		last, errLast := time.Parse(mastery.DayLayout, *p.LastActivity)
		cur, errCur := time.Parse(mastery.DayLayout, day)
		if errLast == nil && errCur == nil && cur.Sub(last) == 24*time.Hour {
			p.StreakDays = prev + 1
		}
	}
	if p.StreakDays > p.MaxStreak {
		p.MaxStreak = p.StreakDays
	}
	d := day
	p.LastActivity = &d
	return true
}
