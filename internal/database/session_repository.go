package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"github.com/example/yachay/pkg/models"
)

const sessionColumns = "id, user_id, mode, status, total, completed, started_at, ended_at"

// SessionRepository stores exercise sessions and their items
type SessionRepository struct {
	db sqlx.ExtContext
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(db sqlx.ExtContext) *SessionRepository {
	return &SessionRepository{db: db}
}

type itemRow struct {
	SessionID  string     `db:"session_id"`
	Position   int        `db:"position"`
	Kind       string     `db:"kind"`
	WordKey    string     `db:"word_key"`
	Payload    []byte     `db:"payload"`
	Answered   bool       `db:"answered"`
	Correct    bool       `db:"correct"`
	AnsweredAt *time.Time `db:"answered_at"`
}

// Create inserts s and its items
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO exercise_sessions (id, user_id, mode, status, total, completed, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		s.ID, s.UserID, s.Mode, s.Status, s.Total, s.Completed, s.StartedAt, s.EndedAt)
	if err != nil {
		return eris.Wrap(err, "failed to create session")
	}

	itemQuery := r.db.Rebind(`
		INSERT INTO session_items (session_id, position, kind, word_key, payload, answered, correct, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, it := range s.Items {
		_, err := r.db.ExecContext(ctx, itemQuery,
			s.ID, it.Position, it.Kind, it.WordKey, jsonArg(it.Payload), it.Answered, it.Correct, it.AnsweredAt)
		if err != nil {
			return eris.Wrapf(err, "failed to create session item %d", it.Position)
		}
	}
	return nil
}

// Get returns the session with its items or ErrNotFound
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := sqlx.GetContext(ctx, r.db, &s, r.db.Rebind("SELECT "+sessionColumns+" FROM exercise_sessions WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to get session")
	}
	if err := r.loadItems(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetOpen returns the newest open session of userID or ErrNotFound
func (r *SessionRepository) GetOpen(ctx context.Context, userID int64) (*models.Session, error) {
	query := "SELECT " + sessionColumns + " FROM exercise_sessions WHERE user_id = ? AND status = ? ORDER BY started_at DESC LIMIT 1"

	var s models.Session
	err := sqlx.GetContext(ctx, r.db, &s, r.db.Rebind(query), userID, models.SessionOpen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to get open session")
	}
	if err := r.loadItems(ctx, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) loadItems(ctx context.Context, s *models.Session) error {
	query := `
		SELECT session_id, position, kind, word_key, payload, answered, correct, answered_at
		FROM session_items WHERE session_id = ? ORDER BY position
	`
	var rows []itemRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), s.ID); err != nil {
		return eris.Wrap(err, "failed to load session items")
	}
	s.Items = make([]models.SessionItem, len(rows))
	for i, row := range rows {
		s.Items[i] = models.SessionItem{
			SessionID:  row.SessionID,
			Position:   row.Position,
			Kind:       row.Kind,
			WordKey:    row.WordKey,
			Payload:    row.Payload,
			Answered:   row.Answered,
			Correct:    row.Correct,
			AnsweredAt: row.AnsweredAt,
		}
	}
	return nil
}

// MarkAnswered records the result of one item and bumps the completed count.
// It returns false when the item was already answered.
func (r *SessionRepository) MarkAnswered(ctx context.Context, sessionID string, position int, correct bool, at time.Time) (bool, error) {
	query := `
		UPDATE session_items SET answered = ?, correct = ?, answered_at = ?
		WHERE session_id = ? AND position = ? AND answered = ?
	`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), true, correct, at, sessionID, position, false)
	if err != nil {
		return false, eris.Wrap(err, "failed to mark item answered")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "failed to mark item answered")
	}
	if n == 0 {
		return false, nil
	}

	bump := `UPDATE exercise_sessions SET completed = completed + 1 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(bump), sessionID); err != nil {
		return false, eris.Wrap(err, "failed to update session progress")
	}
	return true, nil
}

// Complete closes an open session once every item is answered. It returns
// false when items are still pending or the session was already closed.
func (r *SessionRepository) Complete(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	query := `
		UPDATE exercise_sessions SET status = ?, ended_at = ?
		WHERE id = ? AND status = ? AND completed >= total
	`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), models.SessionCompleted, endedAt, id, models.SessionOpen)
	if err != nil {
		return false, eris.Wrap(err, "failed to complete session")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "failed to complete session")
	}
	return n > 0, nil
}

// SetStatus closes or reopens a session
func (r *SessionRepository) SetStatus(ctx context.Context, id string, status models.SessionStatus, endedAt *time.Time) error {
	query := `UPDATE exercise_sessions SET status = ?, ended_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), status, endedAt, id)
	if err != nil {
		return eris.Wrap(err, "failed to update session status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
