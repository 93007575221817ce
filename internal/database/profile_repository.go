package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"github.com/example/yachay/pkg/models"
)

// ProfileRepository handles the per-learner aggregate counters
type ProfileRepository struct {
	db sqlx.ExtContext
}

// NewProfileRepository creates a new repository instance
func NewProfileRepository(db sqlx.ExtContext) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Ensure creates an empty profile for userID if it does not exist
func (r *ProfileRepository) Ensure(ctx context.Context, userID int64) error {
	query := `INSERT INTO profiles (user_id) VALUES (?) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), userID); err != nil {
		return eris.Wrap(err, "failed to ensure profile")
	}
	return nil
}

// Get returns the profile of userID or ErrNotFound
func (r *ProfileRepository) Get(ctx context.Context, userID int64) (*models.Profile, error) {
	query := `SELECT user_id, total_words, mastered_words, streak_days, max_streak, last_activity FROM profiles WHERE user_id = ?`

	var p models.Profile
	err := sqlx.GetContext(ctx, r.db, &p, r.db.Rebind(query), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to get profile")
	}
	return &p, nil
}

// AddWord bumps the total word counter
func (r *ProfileRepository) AddWord(ctx context.Context, userID int64) error {
	return r.bump(ctx, userID, "total_words")
}

// AddMasteredWord bumps the mastered word counter
func (r *ProfileRepository) AddMasteredWord(ctx context.Context, userID int64) error {
	return r.bump(ctx, userID, "mastered_words")
}

// column is always one of the constants above
func (r *ProfileRepository) bump(ctx context.Context, userID int64, column string) error {
	if err := r.Ensure(ctx, userID); err != nil {
		return err
	}
	query := "UPDATE profiles SET " + column + " = " + column + " + 1 WHERE user_id = ?"
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), userID); err != nil {
		return eris.Wrapf(err, "failed to update %s", column)
	}
	return nil
}

// SaveStreak writes the streak fields of p
func (r *ProfileRepository) SaveStreak(ctx context.Context, p *models.Profile) error {
	query := `UPDATE profiles SET streak_days = ?, max_streak = ?, last_activity = ? WHERE user_id = ?`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), p.StreakDays, p.MaxStreak, p.LastActivity, p.UserID); err != nil {
		return eris.Wrap(err, "failed to save streak")
	}
	return nil
}
