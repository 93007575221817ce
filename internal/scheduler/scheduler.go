// Package scheduler runs the background jobs: goal reminders and ledger
// pruning.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/yachay/internal/config"
	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/internal/progress"
	"github.com/example/yachay/pkg/models"
)

const (
	pruneAt    = "03:00"
	jobTimeout = 5 * time.Minute
)

// Notifier interface for sending notifications
type Notifier interface {
	SendReminder(ctx context.Context, userID int64, goal *models.DailyGoal) error
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     *database.Store
	tracker   *progress.Tracker
	notifier  Notifier
	cfg       config.SchedulerConfig
	now       func() time.Time
	loc       *time.Location
	log       *zap.Logger
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLocation sets the time zone of the reminder window and of calendar days
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a new scheduler instance
func New(store *database.Store, tracker *progress.Tracker, notifier Notifier, cfg config.SchedulerConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    store,
		tracker:  tracker,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		loc:      time.UTC,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("scheduler")
	s.scheduler = gocron.NewScheduler(s.loc)
	return s
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Hour().Do(s.runJob("reminders", s.remind)); err != nil {
		return eris.Wrap(err, "scheduler: schedule reminders")
	}
	if _, err := s.scheduler.Every(1).Day().At(pruneAt).Do(s.runJob("prune", s.prune)); err != nil {
		return eris.Wrap(err, "scheduler: schedule ledger pruning")
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	s.log.Info("scheduler started",
		zap.Int("reminder_start_hour", s.cfg.ReminderStartHour),
		zap.Int("reminder_end_hour", s.cfg.ReminderEndHour))
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runJob(name string, job func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := job(ctx); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

func (s *Scheduler) remind(ctx context.Context) error {
	_, err := s.CheckReminders(ctx)
	return err
}

func (s *Scheduler) prune(ctx context.Context) error {
	_, err := s.PruneLedger(ctx)
	return err
}

// CheckReminders nudges every learner whose daily goal is incomplete, when
// the current hour is inside the reminder window. It returns how many
// reminders were sent.
func (s *Scheduler) CheckReminders(ctx context.Context) (int, error) {
	hour := s.now().In(s.loc).Hour()
	if hour < s.cfg.ReminderStartHour || hour >= s.cfg.ReminderEndHour {
		s.log.Debug("outside reminder window, skipping",
			zap.Int("hour", hour),
			zap.Int("start", s.cfg.ReminderStartHour),
			zap.Int("end", s.cfg.ReminderEndHour))
		return 0, nil
	}

	users, err := database.NewUserRepository(s.store.DB()).GetAll(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, user := range users {
		ok, err := s.RemindUser(ctx, user.ID)
		if err != nil {
			s.log.Warn("failed to remind user", zap.Int64("user_id", user.ID), zap.Error(err))
			continue
		}
		if ok {
			sent++
		}
	}
	s.log.Info("reminders sent", zap.Int("sent", sent), zap.Int("users", len(users)))
	return sent, nil
}

// RemindUser sends a reminder to one learner if today's goal is incomplete
func (s *Scheduler) RemindUser(ctx context.Context, userID int64) (bool, error) {
	goal, err := s.tracker.Today(ctx, userID)
	if err != nil {
		return false, err
	}
	if goal.IsComplete() {
		return false, nil
	}
	if err := s.notifier.SendReminder(ctx, userID, goal); err != nil {
		return false, eris.Wrapf(err, "scheduler: remind user %d", userID)
	}
	return true, nil
}

// PruneLedger drops daily ledger rows older than the retention period
func (s *Scheduler) PruneLedger(ctx context.Context) (int64, error) {
	days := max(s.cfg.LedgerRetentionDays, 1)
	before := mastery.Day(s.now().AddDate(0, 0, -days), s.loc)

	n, err := database.NewLedgerRepository(s.store.DB()).Prune(ctx, before)
	if err != nil {
		return 0, err
	}
	s.log.Info("daily ledger pruned", zap.String("before", before), zap.Int64("rows", n))
	return n, nil
}
