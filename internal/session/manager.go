// Package session runs exercise sessions on top of the mastery engine.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/exercise"
	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/internal/progress"
	"github.com/example/yachay/pkg/models"
)

var (
	ErrNotFound        = eris.New("session: not found")
	ErrSessionClosed   = eris.New("session: closed")
	ErrSessionOpen     = eris.New("session: another session is open")
	ErrAlreadyAnswered = eris.New("session: item already answered")
	ErrNoWords         = eris.New("session: no words to practice")
)

// Recorder is notified when a session ends
type Recorder interface {
	SessionEnded(mode models.Mode, status models.SessionStatus)
}

type nopRecorder struct{}

func (nopRecorder) SessionEnded(models.Mode, models.SessionStatus) {}

// Manager starts, answers and abandons sessions
type Manager struct {
	store   *database.Store
	engine  *mastery.Engine
	tracker *progress.Tracker
	gen     *exercise.Generator
	rec     Recorder
	now     func() time.Time
	log     *zap.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithGenerator replaces the clock-seeded exercise generator
func WithGenerator(g *exercise.Generator) Option {
	return func(m *Manager) { m.gen = g }
}

// WithRecorder registers a session recorder
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.rec = r
		}
	}
}

// NewManager creates a manager
func NewManager(store *database.Store, engine *mastery.Engine, tracker *progress.Tracker, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		engine:  engine,
		tracker: tracker,
		rec:     nopRecorder{},
		now:     time.Now,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.gen == nil {
		m.gen = exercise.NewGenerator(nil)
	}
	m.log = m.log.Named("session")
	return m
}

// Feedback is the outcome of one answer
type Feedback struct {
	Session  *models.Session
	Exercise exercise.Exercise
	Correct  bool
	Result   *mastery.Result
	// Goal is nil when the daily goal could not be updated
	Goal *models.DailyGoal
	// Next is the following unanswered item, nil once the session is complete
	Next *models.SessionItem
}

// Abandoned is the effect of abandoning one pending word
type Abandoned struct {
	WordKey  string
	Degraded bool
}

// Start opens a session with one exercise per word. pool feeds distractors.
func (m *Manager) Start(ctx context.Context, userID int64, mode models.Mode, words, pool []models.Translation) (*models.Session, error) {
	if !mode.Valid() {
		return nil, eris.Wrapf(mastery.ErrInvalidMode, "%q", mode)
	}
	if len(words) == 0 {
		return nil, ErrNoWords
	}

	s := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      mode,
		Status:    models.SessionOpen,
		Total:     len(words),
		StartedAt: m.now(),
	}

	err := m.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		sessions := database.NewSessionRepository(tx)
		if _, err := sessions.GetOpen(ctx, userID); err == nil {
			return ErrSessionOpen
		} else if !errors.Is(err, database.ErrNotFound) {
			return err
		}

		vocabulary := database.NewVocabularyRepository(tx)
		for i, w := range words {
			key := mastery.NormalizeWord(w.Quechua)
			if key == "" {
				return eris.Wrapf(mastery.ErrEmptyWord, "label %q", w.Label)
			}
			level := 1
			entry, err := vocabulary.Get(ctx, userID, key)
			switch {
			case err == nil:
				level = entry.MasteryLevel
			case !errors.Is(err, database.ErrNotFound):
				return err
			}

			ex, err := m.gen.Build(m.gen.Pick(len(pool)), w, level, pool)
			if err != nil {
				return err
			}
			kind, payload, err := exercise.Encode(ex)
			if err != nil {
				return err
			}
			s.Items = append(s.Items, models.SessionItem{
				SessionID: s.ID,
				Position:  i,
				Kind:      string(kind),
				WordKey:   key,
				Payload:   payload,
			})
		}
		return sessions.Create(ctx, s)
	})
	if err != nil {
		return nil, eris.Wrap(err, "session: start")
	}

	m.log.Info("session started",
		zap.Int64("user_id", userID),
		zap.String("session_id", s.ID),
		zap.String("mode", mode.String()),
		zap.Int("items", s.Total))
	return s, nil
}

// Current returns the open session of userID or ErrNotFound
func (m *Manager) Current(ctx context.Context, userID int64) (*models.Session, error) {
	s, err := database.NewSessionRepository(m.store.DB()).GetOpen(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	return s, err
}

// Answer checks answer against the item at position and records the outcome
func (m *Manager) Answer(ctx context.Context, userID int64, sessionID string, position int, answer string) (*Feedback, error) {
	s, err := m.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != models.SessionOpen {
		return nil, ErrSessionClosed
	}
	item := itemAt(s, position)
	if item == nil {
		return nil, eris.Wrapf(ErrNotFound, "item %d", position)
	}
	if item.Answered {
		return nil, ErrAlreadyAnswered
	}

	ex, err := Exercise(*item)
	if err != nil {
		return nil, err
	}
	correct := ex.Check(answer)
	now := m.now()

	// the item is claimed before the outcome so a resubmitted answer never counts twice
	var marked bool
	err = m.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		marked, err = database.NewSessionRepository(tx).MarkAnswered(ctx, s.ID, position, correct, now)
		return err
	})
	if err != nil {
		return nil, eris.Wrap(err, "session: answer")
	}
	if !marked {
		return nil, ErrAlreadyAnswered
	}

	res, err := m.engine.RecordOutcome(ctx, userID, item.WordKey, correct, s.Mode)
	if err != nil {
		return nil, err
	}

	// completion is read back from the stored counts, other items may have
	// been answered since s was loaded
	var closed bool
	err = m.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		payload := models.CompletionPayload{
			SessionID:     s.ID,
			ExerciseKind:  item.Kind,
			Correct:       correct,
			MasteryLevel:  res.CurrentLevel,
			PreviousLevel: res.PreviousLevel,
		}
		if err := appendEvent(ctx, tx, s, item.WordKey, models.KindExerciseCompleted, payload, now); err != nil {
			return err
		}
		sessions := database.NewSessionRepository(tx)
		var err error
		if closed, err = sessions.Complete(ctx, s.ID, now); err != nil {
			return err
		}
		fresh, err := sessions.Get(ctx, s.ID)
		if err != nil {
			return err
		}
		s = fresh
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "session: answer")
	}
	next := nextItem(s)
	if closed {
		m.rec.SessionEnded(s.Mode, s.Status)
		m.log.Info("session completed", zap.Int64("user_id", userID), zap.String("session_id", s.ID))
	}

	goal, err := m.tracker.Practiced(ctx, userID, res)
	if err != nil {
		m.log.Warn("failed to update daily goal", zap.Int64("user_id", userID), zap.Error(err))
	}

	return &Feedback{
		Session:  s,
		Exercise: ex,
		Correct:  correct,
		Result:   res,
		Goal:     goal,
		Next:     next,
	}, nil
}

// Abandon closes an open session and charges every unanswered word. A
// completed session is returned untouched.
func (m *Manager) Abandon(ctx context.Context, userID int64, sessionID string) ([]Abandoned, error) {
	s, err := m.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	switch s.Status {
	case models.SessionCompleted:
		return nil, nil
	case models.SessionAbandoned:
		return nil, ErrSessionClosed
	}

	var out []Abandoned
	for _, it := range s.Items {
		if it.Answered {
			continue
		}
		degraded, err := m.engine.RegisterAbandonment(ctx, userID, it.WordKey, s.Mode)
		if err != nil {
			return out, err
		}
		out = append(out, Abandoned{WordKey: it.WordKey, Degraded: degraded})
	}

	now := m.now()
	status := models.SessionAbandoned
	if len(out) == 0 {
		status = models.SessionCompleted
	}
	if err := database.NewSessionRepository(m.store.DB()).SetStatus(ctx, s.ID, status, &now); err != nil {
		return out, eris.Wrap(err, "session: abandon")
	}
	m.rec.SessionEnded(s.Mode, status)
	m.log.Info("session abandoned",
		zap.Int64("user_id", userID),
		zap.String("session_id", s.ID),
		zap.Int("pending", len(out)))
	return out, nil
}

// Preview reports what abandoning the session now would do to each pending word
func (m *Manager) Preview(ctx context.Context, userID int64, sessionID string) ([]mastery.AbandonmentPreview, error) {
	s, err := m.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != models.SessionOpen {
		return nil, ErrSessionClosed
	}

	vocabulary := database.NewVocabularyRepository(m.store.DB())
	seen := map[string]bool{}
	var out []mastery.AbandonmentPreview
	for _, it := range s.Items {
		if it.Answered || seen[it.WordKey] {
			continue
		}
		seen[it.WordKey] = true
		entry, err := vocabulary.Get(ctx, userID, it.WordKey)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, eris.Wrap(err, "session: preview")
		}
		out = append(out, m.engine.PreviewAbandonment(entry, s.Mode))
	}
	return out, nil
}

// Exercise decodes the exercise stored in item
func Exercise(item models.SessionItem) (exercise.Exercise, error) {
	return exercise.Decode(exercise.Kind(item.Kind), item.Payload)
}

// NextItem returns the first unanswered item of s or nil
func NextItem(s *models.Session) *models.SessionItem {
	return nextItem(s)
}

func (m *Manager) load(ctx context.Context, userID int64, sessionID string) (*models.Session, error) {
	s, err := database.NewSessionRepository(m.store.DB()).Get(ctx, sessionID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && s.UserID != userID) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "session: load")
	}
	return s, nil
}

func itemAt(s *models.Session, position int) *models.SessionItem {
	for i := range s.Items {
		if s.Items[i].Position == position {
			return &s.Items[i]
		}
	}
	return nil
}

func nextItem(s *models.Session) *models.SessionItem {
	for i := range s.Items {
		if !s.Items[i].Answered {
			return &s.Items[i]
		}
	}
	return nil
}

func appendEvent(ctx context.Context, tx *sqlx.Tx, s *models.Session, wordKey string, kind models.AuditKind, payload any, now time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "session: encode event payload")
	}
	return database.NewAuditRepository(tx).Append(ctx, &models.AuditEvent{
		ID:        uuid.NewString(),
		UserID:    s.UserID,
		Kind:      kind,
		WordKey:   wordKey,
		Mode:      s.Mode,
		Payload:   raw,
		CreatedAt: now,
	})
}
