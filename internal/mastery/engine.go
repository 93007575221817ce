package mastery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/yachay/pkg/models"
)

var (
	// ErrInvalidMode is returned when a caller passes anything but detection or practice
	ErrInvalidMode = eris.New("mastery: invalid mode")
	// ErrEmptyWord is returned when a word normalizes to nothing
	ErrEmptyWord = eris.New("mastery: empty word")
)

// Store runs engine work inside a single transaction
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional view of persistence the engine needs
type Tx interface {
	// GetEntry returns nil, nil when the learner has no entry for wordKey.
	// Implementations lock the row for the rest of the transaction.
	GetEntry(ctx context.Context, userID int64, wordKey string) (*models.VocabularyEntry, error)
	CreateEntry(ctx context.Context, entry *models.VocabularyEntry) error
	SaveEntry(ctx context.Context, entry *models.VocabularyEntry) error
	// HasAction and RecordAction manage the daily action ledger
	HasAction(ctx context.Context, userID int64, wordKey string, action models.AuditKind, day string) (bool, error)
	RecordAction(ctx context.Context, userID int64, wordKey string, action models.AuditKind, day string) error
	AppendEvent(ctx context.Context, event *models.AuditEvent) error
	// AddMasteredWord bumps the owner's profile counter
	AddMasteredWord(ctx context.Context, userID int64) error
}

// Observer receives engine outcomes, used for metrics
type Observer interface {
	OutcomeRecorded(mode models.Mode, correct bool)
	Degraded(mode models.Mode, reason string)
	Abandoned(mode models.Mode, penalized bool)
	Mastered(mode models.Mode)
}

type nopObserver struct{}

func (nopObserver) OutcomeRecorded(models.Mode, bool) {}
func (nopObserver) Degraded(models.Mode, string)      {}
func (nopObserver) Abandoned(models.Mode, bool)       {}
func (nopObserver) Mastered(models.Mode)              {}

// WordInfo describes a word when a caller creates or touches an entry
type WordInfo struct {
	Word        string
	SourceLabel string
	GlossWord   string
}

// Result describes the effect of one RecordOutcome call. Callers render
// feedback from it rather than re-deriving the rules.
type Result struct {
	WordKey                      string `json:"word_key"`
	PreviousLevel                int    `json:"previous_level"`
	CurrentLevel                 int    `json:"current_level"`
	MasteryUpdated               bool   `json:"mastery_updated"`
	MasteryDecreased             bool   `json:"mastery_decreased"`
	NewlyMastered                bool   `json:"newly_mastered"`
	Created                      bool   `json:"created"`
	ConsecutiveFailures          int    `json:"consecutive_failures"`
	ConsecutiveFailuresLimit     int    `json:"consecutive_failures_limit"`
	IsRecentWord                 bool   `json:"is_recent_word"`
	IsMinimallyPracticed         bool   `json:"is_minimally_practiced"`
	ExercisesCompleted           int    `json:"exercises_completed"`
	ExercisesNeededForNextReview int    `json:"exercises_needed_for_next_review"`
}

// Engine owns the star-level transitions of vocabulary entries
type Engine struct {
	store    Store
	policy   Policy
	now      func() time.Time
	loc      *time.Location
	log      *zap.Logger
	observer Observer
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the time zone that defines calendar days
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithPolicy replaces DefaultPolicy
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithObserver registers an outcome observer
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine creates an engine over store
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		policy:   DefaultPolicy(),
		now:      time.Now,
		loc:      time.UTC,
		log:      zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("mastery")
	return e
}

// Policy returns the rules in effect
func (e *Engine) Policy() Policy {
	return e.policy
}

// Today returns the current calendar day key
func (e *Engine) Today() string {
	return Day(e.now(), e.loc)
}

// ParseMode validates a caller-supplied mode. There is no fallback.
func ParseMode(s string) (models.Mode, error) {
	m := models.Mode(s)
	if !m.Valid() {
		return "", eris.Wrapf(ErrInvalidMode, "%q", s)
	}
	return m, nil
}

// EnsureEntry returns the learner's entry for info.Word, creating it at level 1
// when missing. Detection sightings of an existing word bump its detection count.
func (e *Engine) EnsureEntry(ctx context.Context, userID int64, info WordInfo, mode models.Mode) (*models.VocabularyEntry, bool, error) {
	if !mode.Valid() {
		return nil, false, eris.Wrapf(ErrInvalidMode, "%q", mode)
	}
	key := NormalizeWord(info.Word)
	if key == "" {
		return nil, false, ErrEmptyWord
	}

	now := e.now()
	var (
		entry   *models.VocabularyEntry
		created bool
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		// a retried transaction starts over
		created = false
		var err error
		entry, err = tx.GetEntry(ctx, userID, key)
		if err != nil {
			return err
		}
		if entry == nil {
			entry = newEntry(userID, key, mode, now)
			entry.SourceLabel = info.SourceLabel
			entry.GlossWord = info.GlossWord
			if mode == models.ModeDetection {
				entry.TimesDetected = 1
			}
			created = true
			return tx.CreateEntry(ctx, entry)
		}
		if mode == models.ModeDetection {
			entry.TimesDetected++
		}
		entry.LastSeenAt = &now
		return tx.SaveEntry(ctx, entry)
	})
	if err != nil {
		return nil, false, eris.Wrapf(err, "mastery: ensure entry %q", key)
	}
	return entry, created, nil
}

// RecordOutcome applies one exercise result to the learner's entry for word.
// A missing entry is created at level 1 rather than rejected.
func (e *Engine) RecordOutcome(ctx context.Context, userID int64, word string, correct bool, mode models.Mode) (*Result, error) {
	if !mode.Valid() {
		return nil, eris.Wrapf(ErrInvalidMode, "%q", mode)
	}
	key := NormalizeWord(word)
	if key == "" {
		return nil, ErrEmptyWord
	}

	now := e.now()
	var res *Result
	err := e.store.InTx(ctx, func(tx Tx) error {
		entry, err := tx.GetEntry(ctx, userID, key)
		if err != nil {
			return err
		}
		created := false
		if entry == nil {
			entry = newEntry(userID, key, mode, now)
			if err := tx.CreateEntry(ctx, entry); err != nil {
				return err
			}
			created = true
			if mode == models.ModeDetection {
				e.log.Warn("word missing from vocabulary, creating it",
					zap.Int64("user_id", userID), zap.String("word", key))
				if err := tx.AppendEvent(ctx, newEvent(entry, models.KindWordAutoCreated, mode, now, nil)); err != nil {
					return err
				}
			}
		}

		res, err = e.applyOutcome(ctx, tx, entry, correct, mode, now)
		if err != nil {
			return err
		}
		res.Created = created
		return tx.SaveEntry(ctx, entry)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "mastery: record outcome for %q", key)
	}

	e.observer.OutcomeRecorded(mode, correct)
	if res.MasteryDecreased {
		e.observer.Degraded(mode, ReasonConsecutiveFailures)
	}
	if res.NewlyMastered {
		e.observer.Mastered(mode)
	}
	e.log.Debug("outcome recorded",
		zap.Int64("user_id", userID),
		zap.String("word", key),
		zap.String("mode", mode.String()),
		zap.Bool("correct", correct),
		zap.Int("level", res.CurrentLevel))
	return res, nil
}

func (e *Engine) applyOutcome(ctx context.Context, tx Tx, entry *models.VocabularyEntry, correct bool, mode models.Mode, now time.Time) (*Result, error) {
	rules := e.policy.For(mode)

	entry.ExercisesCompleted++
	entry.PreviousMasteryLevel = entry.MasteryLevel
	recent := e.isRecent(entry, rules, now)
	practiced := entry.ExercisesCompleted >= MinExercisesForReview

	res := &Result{
		WordKey:                  entry.WordKey,
		PreviousLevel:            entry.MasteryLevel,
		ConsecutiveFailuresLimit: rules.FailureLimit,
		IsRecentWord:             recent,
		IsMinimallyPracticed:     practiced,
	}

	if correct {
		entry.ExercisesCorrect++
		if lvl := rules.PromotionLevel(entry.MasteryLevel, entry.ExercisesCorrect, entry.SuccessRate()); lvl > entry.MasteryLevel {
			entry.MasteryLevel = lvl
		}
		if entry.MasteryLevel >= MaxLevel && entry.MasteredAt == nil {
			entry.MasteredAt = &now
			res.NewlyMastered = true
			if err := tx.AddMasteredWord(ctx, entry.UserID); err != nil {
				return nil, err
			}
			if err := tx.AppendEvent(ctx, newEvent(entry, models.KindWordMastered, mode, now, nil)); err != nil {
				return nil, err
			}
		}
		entry.ConsecutiveFailures = 0
	} else {
		entry.ConsecutiveFailures++
		degraded, err := e.maybeDegrade(ctx, tx, entry, rules, mode, recent, practiced, now, ReasonConsecutiveFailures)
		if err != nil {
			return nil, err
		}
		res.MasteryDecreased = degraded
	}

	entry.MasteryLevel = clamp(entry.MasteryLevel, e.policy.floor(entry, mode), MaxLevel)
	entry.LastPracticedAt = &now

	res.CurrentLevel = entry.MasteryLevel
	res.MasteryUpdated = entry.MasteryLevel > res.PreviousLevel
	res.ConsecutiveFailures = entry.ConsecutiveFailures
	res.ExercisesCompleted = entry.ExercisesCompleted
	if need := MinExercisesForReview - entry.ExercisesCompleted; need > 0 {
		res.ExercisesNeededForNextReview = need
	}
	return res, nil
}

// RegisterAbandonment charges an abandoned exercise against the learner's entry.
// Only the first abandonment of a word per day carries a penalty.
func (e *Engine) RegisterAbandonment(ctx context.Context, userID int64, word string, mode models.Mode) (bool, error) {
	if !mode.Valid() {
		return false, eris.Wrapf(ErrInvalidMode, "%q", mode)
	}
	key := NormalizeWord(word)
	if key == "" {
		return false, ErrEmptyWord
	}

	now := e.now()
	day := Day(now, e.loc)
	rules := e.policy.For(mode)
	var (
		degraded bool
		charged  bool
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		degraded, charged = false, false
		entry, err := tx.GetEntry(ctx, userID, key)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}

		entry.AbandonedExercises++
		already, err := tx.HasAction(ctx, userID, key, models.KindExerciseAbandoned, day)
		if err != nil {
			return err
		}
		if already {
			return tx.SaveEntry(ctx, entry)
		}
		charged = true

		entry.ConsecutiveFailures += rules.AbandonmentWeight
		recent := e.isRecent(entry, rules, now)
		practiced := entry.ExercisesCompleted >= MinExercisesForReview
		degraded, err = e.maybeDegrade(ctx, tx, entry, rules, mode, recent, practiced, now, ReasonAbandonment)
		if err != nil {
			return err
		}
		entry.MasteryLevel = clamp(entry.MasteryLevel, e.policy.floor(entry, mode), MaxLevel)

		if err := tx.RecordAction(ctx, userID, key, models.KindExerciseAbandoned, day); err != nil {
			return err
		}
		ev := newEvent(entry, models.KindExerciseAbandoned, mode, now, models.AbandonmentPayload{
			ConsecutiveFailures: entry.ConsecutiveFailures,
			MasteryLevel:        entry.MasteryLevel,
			DidDegrade:          degraded,
		})
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		return tx.SaveEntry(ctx, entry)
	})
	if err != nil {
		return false, eris.Wrapf(err, "mastery: register abandonment for %q", key)
	}

	if charged {
		e.observer.Abandoned(mode, degraded)
	}
	if degraded {
		e.observer.Degraded(mode, ReasonAbandonment)
	}
	return degraded, nil
}

// maybeDegrade removes one star when the failure run, practice count and age of
// the word allow it and the word has not already lost a star today.
func (e *Engine) maybeDegrade(ctx context.Context, tx Tx, entry *models.VocabularyEntry, rules Rules, mode models.Mode, recent, practiced bool, now time.Time, reason string) (bool, error) {
	day := Day(now, e.loc)
	already, err := tx.HasAction(ctx, entry.UserID, entry.WordKey, models.KindMasteryDecreased, day)
	if err != nil {
		return false, err
	}
	if already ||
		entry.ConsecutiveFailures < rules.FailureLimit ||
		entry.MasteryLevel <= 1 ||
		!practiced ||
		recent {
		return false, nil
	}

	prev := entry.MasteryLevel
	entry.PreviousMasteryLevel = prev
	entry.MasteryLevel--
	entry.ConsecutiveFailures = 0

	if err := tx.RecordAction(ctx, entry.UserID, entry.WordKey, models.KindMasteryDecreased, day); err != nil {
		return false, err
	}
	ev := newEvent(entry, models.KindMasteryDecreased, mode, now, models.DegradationPayload{
		PreviousLevel: prev,
		NewLevel:      entry.MasteryLevel,
		Reason:        reason,
	})
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return false, err
	}

	e.log.Info("mastery decreased",
		zap.Int64("user_id", entry.UserID),
		zap.String("word", entry.WordKey),
		zap.String("reason", reason),
		zap.Int("from", prev),
		zap.Int("to", entry.MasteryLevel))
	return true, nil
}

func (e *Engine) isRecent(entry *models.VocabularyEntry, rules Rules, now time.Time) bool {
	return daysBetween(entry.FirstSeenAt, now, e.loc) <= rules.RecentWindowDays
}

func newEntry(userID int64, key string, mode models.Mode, now time.Time) *models.VocabularyEntry {
	return &models.VocabularyEntry{
		UserID:               userID,
		WordKey:              key,
		DiscoveredVia:        mode,
		MasteryLevel:         1,
		PreviousMasteryLevel: 1,
		FirstSeenAt:          now,
		LastSeenAt:           &now,
	}
}

func newEvent(entry *models.VocabularyEntry, kind models.AuditKind, mode models.Mode, now time.Time, payload any) *models.AuditEvent {
	ev := &models.AuditEvent{
		ID:        uuid.NewString(),
		UserID:    entry.UserID,
		Kind:      kind,
		WordKey:   entry.WordKey,
		Mode:      mode,
		CreatedAt: now,
	}
	if payload != nil {
		// payloads are plain structs and always marshal
		raw, _ := json.Marshal(payload)
		ev.Payload = raw
	}
	return ev
}
