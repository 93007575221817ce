package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"github.com/example/yachay/pkg/models"
)

const vocabularyColumns = `id, user_id, word_key, source_label, gloss_word, discovered_via,
	mastery_level, previous_mastery_level, exercises_completed, exercises_correct,
	consecutive_failures, abandoned_exercises, times_detected,
	first_seen_at, last_seen_at, last_practiced_at, mastered_at`

// VocabularyRepository handles database operations for vocabulary entries
type VocabularyRepository struct {
	db sqlx.ExtContext
}

// NewVocabularyRepository creates a new repository instance. db may be a
// *sqlx.DB or a *sqlx.Tx.
func NewVocabularyRepository(db sqlx.ExtContext) *VocabularyRepository {
	return &VocabularyRepository{db: db}
}

// Get returns the entry for (userID, wordKey) or ErrNotFound
func (r *VocabularyRepository) Get(ctx context.Context, userID int64, wordKey string) (*models.VocabularyEntry, error) {
	return r.get(ctx, userID, wordKey, false)
}

// GetForUpdate is Get with a row lock on postgres
func (r *VocabularyRepository) GetForUpdate(ctx context.Context, userID int64, wordKey string) (*models.VocabularyEntry, error) {
	return r.get(ctx, userID, wordKey, true)
}

func (r *VocabularyRepository) get(ctx context.Context, userID int64, wordKey string, lock bool) (*models.VocabularyEntry, error) {
	query := "SELECT " + vocabularyColumns + " FROM vocabulary WHERE user_id = ? AND word_key = ?"
	if lock && isPostgres(r.db) {
		query += " FOR UPDATE"
	}

	var entry models.VocabularyEntry
	err := sqlx.GetContext(ctx, r.db, &entry, r.db.Rebind(query), userID, wordKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to get vocabulary entry")
	}
	return &entry, nil
}

// ListByUser returns every entry of a learner, weakest first
func (r *VocabularyRepository) ListByUser(ctx context.Context, userID int64) ([]models.VocabularyEntry, error) {
	query := "SELECT " + vocabularyColumns + " FROM vocabulary WHERE user_id = ? ORDER BY mastery_level, word_key"

	var entries []models.VocabularyEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, r.db.Rebind(query), userID); err != nil {
		return nil, eris.Wrap(err, "failed to list vocabulary")
	}
	return entries, nil
}

// Create inserts entry and sets its ID
func (r *VocabularyRepository) Create(ctx context.Context, entry *models.VocabularyEntry) error {
	query := `
		INSERT INTO vocabulary (
			user_id, word_key, source_label, gloss_word, discovered_via,
			mastery_level, previous_mastery_level, exercises_completed, exercises_correct,
			consecutive_failures, abandoned_exercises, times_detected,
			first_seen_at, last_seen_at, last_practiced_at, mastered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(query),
		entry.UserID,
		entry.WordKey,
		entry.SourceLabel,
		entry.GlossWord,
		entry.DiscoveredVia,
		entry.MasteryLevel,
		entry.PreviousMasteryLevel,
		entry.ExercisesCompleted,
		entry.ExercisesCorrect,
		entry.ConsecutiveFailures,
		entry.AbandonedExercises,
		entry.TimesDetected,
		entry.FirstSeenAt,
		entry.LastSeenAt,
		entry.LastPracticedAt,
		entry.MasteredAt,
	).Scan(&entry.ID)
	if err != nil {
		return eris.Wrap(err, "failed to create vocabulary entry")
	}
	return nil
}

// Save writes every mutable column of entry
func (r *VocabularyRepository) Save(ctx context.Context, entry *models.VocabularyEntry) error {
	query := `
		UPDATE vocabulary SET
			source_label = ?, gloss_word = ?,
			mastery_level = ?, previous_mastery_level = ?,
			exercises_completed = ?, exercises_correct = ?,
			consecutive_failures = ?, abandoned_exercises = ?, times_detected = ?,
			last_seen_at = ?, last_practiced_at = ?, mastered_at = ?
		WHERE user_id = ? AND word_key = ?
	`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		entry.SourceLabel,
		entry.GlossWord,
		entry.MasteryLevel,
		entry.PreviousMasteryLevel,
		entry.ExercisesCompleted,
		entry.ExercisesCorrect,
		entry.ConsecutiveFailures,
		entry.AbandonedExercises,
		entry.TimesDetected,
		entry.LastSeenAt,
		entry.LastPracticedAt,
		entry.MasteredAt,
		entry.UserID,
		entry.WordKey,
	)
	if err != nil {
		return eris.Wrap(err, "failed to save vocabulary entry")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
