package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"github.com/example/yachay/pkg/models"
)

// LedgerRepository stores once-per-day actions keyed by (user, word, action, day)
type LedgerRepository struct {
	db sqlx.ExtContext
}

// NewLedgerRepository creates a new repository instance
func NewLedgerRepository(db sqlx.ExtContext) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Has reports whether action was recorded for the word on day
func (r *LedgerRepository) Has(ctx context.Context, userID int64, wordKey string, action models.AuditKind, day string) (bool, error) {
	query := `SELECT COUNT(*) FROM daily_action_ledger WHERE user_id = ? AND word_key = ? AND action = ? AND day = ?`

	var n int
	if err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(query), userID, wordKey, action, day); err != nil {
		return false, eris.Wrap(err, "failed to query daily ledger")
	}
	return n > 0, nil
}

// Record marks action as done for the word on day. Recording twice is a no-op.
func (r *LedgerRepository) Record(ctx context.Context, userID int64, wordKey string, action models.AuditKind, day string) error {
	query := `
		INSERT INTO daily_action_ledger (user_id, word_key, action, day)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), userID, wordKey, action, day); err != nil {
		return eris.Wrap(err, "failed to record daily action")
	}
	return nil
}

// Prune deletes ledger rows for days before the given day
func (r *LedgerRepository) Prune(ctx context.Context, before string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM daily_action_ledger WHERE day < ?`), before)
	if err != nil {
		return 0, eris.Wrap(err, "failed to prune daily ledger")
	}
	return res.RowsAffected()
}
