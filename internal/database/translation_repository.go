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

// TranslationRepository handles the label translation catalog
type TranslationRepository struct {
	db sqlx.ExtContext
}

// NewTranslationRepository creates a new repository instance
func NewTranslationRepository(db sqlx.ExtContext) *TranslationRepository {
	return &TranslationRepository{db: db}
}

// GetByLabel returns the translation of label or ErrNotFound
func (r *TranslationRepository) GetByLabel(ctx context.Context, label string) (*models.Translation, error) {
	query := `SELECT id, label, spanish, quechua, created_at, updated_at FROM translations WHERE label = ?`

	var t models.Translation
	err := sqlx.GetContext(ctx, r.db, &t, r.db.Rebind(query), label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to get translation")
	}
	return &t, nil
}

// GetAll returns the whole catalog ordered by label
func (r *TranslationRepository) GetAll(ctx context.Context) ([]models.Translation, error) {
	var ts []models.Translation
	err := sqlx.SelectContext(ctx, r.db, &ts, `SELECT id, label, spanish, quechua, created_at, updated_at FROM translations ORDER BY label`)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get translations")
	}
	return ts, nil
}

// Upsert inserts t or updates the existing row with the same label
func (r *TranslationRepository) Upsert(ctx context.Context, t *models.Translation) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO translations (label, spanish, quechua, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (label) DO UPDATE SET
			spanish = excluded.spanish,
			quechua = excluded.quechua,
			updated_at = excluded.updated_at
		RETURNING id
	`
	if err := r.db.QueryRowxContext(ctx, r.db.Rebind(query), t.Label, t.Spanish, t.Quechua, now, now).Scan(&t.ID); err != nil {
		return eris.Wrapf(err, "failed to upsert translation %q", t.Label)
	}
	t.UpdatedAt = now
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	return nil
}
