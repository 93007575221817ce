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

// UserRepository handles database operations for users
type UserRepository struct {
	db sqlx.ExtContext
}

// NewUserRepository creates a new repository instance
func NewUserRepository(db sqlx.ExtContext) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID returns a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	query := "SELECT id, username, first_name, last_name, created_at FROM users WHERE id = ?"

	err := sqlx.GetContext(ctx, r.db, &user, r.db.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to get user by ID")
	}
	return &user, nil
}

// GetAll returns all users
func (r *UserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := sqlx.SelectContext(ctx, r.db, &users, "SELECT id, username, first_name, last_name, created_at FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, eris.Wrap(err, "failed to get users")
	}
	return users, nil
}

// Upsert inserts a new user or refreshes the names of an existing one, and
// makes sure the user has a profile
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO users (id, username, first_name, last_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name
	`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "failed to upsert user")
	}
	return NewProfileRepository(r.db).Ensure(ctx, user.ID)
}
