package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"

	"github.com/example/yachay/pkg/models"
)

// AuditRepository appends to and reads the activity stream
type AuditRepository struct {
	db sqlx.ExtContext
}

// NewAuditRepository creates a new repository instance
func NewAuditRepository(db sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{db: db}
}

type auditRow struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	Kind      string    `db:"kind"`
	WordKey   string    `db:"word_key"`
	Mode      string    `db:"mode"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

// Append stores event. Events are never updated.
func (r *AuditRepository) Append(ctx context.Context, event *models.AuditEvent) error {
	query := `
		INSERT INTO audit_events (id, user_id, kind, word_key, mode, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		event.ID,
		event.UserID,
		event.Kind,
		event.WordKey,
		event.Mode,
		jsonArg(event.Payload),
		event.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "failed to append %s event", event.Kind)
	}
	return nil
}

// List returns the newest events of a learner. An empty kind matches all kinds.
func (r *AuditRepository) List(ctx context.Context, userID int64, kind models.AuditKind, limit int) ([]models.AuditEvent, error) {
	query := `SELECT id, user_id, kind, word_key, mode, payload, created_at FROM audit_events WHERE user_id = ?`
	args := []any{userID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []auditRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, eris.Wrap(err, "failed to list audit events")
	}

	events := make([]models.AuditEvent, len(rows))
	for i, row := range rows {
		events[i] = models.AuditEvent{
			ID:        row.ID,
			UserID:    row.UserID,
			Kind:      models.AuditKind(row.Kind),
			WordKey:   row.WordKey,
			Mode:      models.Mode(row.Mode),
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		}
	}
	return events, nil
}

// jsonArg passes raw JSON as text so it binds to both TEXT and JSONB columns
func jsonArg(raw []byte) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
