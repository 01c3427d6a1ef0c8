package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/flashsale-purchase-processor/internal/apperr"
	"github.com/fairyhunter13/flashsale-purchase-processor/internal/model"
)

// UserRepository provides data access for users using pgx.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository with the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetOrCreateByEmail implements auto-registration: a user is created on
// first observed email and returned unchanged on subsequent calls.
func (r *UserRepository) GetOrCreateByEmail(ctx context.Context, userID, email string) (*model.User, error) {
	query := `
		INSERT INTO users (user_id, email, role)
		VALUES ($1, lower($2), 'user')
		ON CONFLICT (email) DO UPDATE SET email = users.email
		RETURNING user_id, email, role, created_at`

	var u model.User
	err := r.pool.QueryRow(ctx, query, userID, email).Scan(&u.UserID, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create user by email %s: %w", email, err)
	}
	return &u, nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	query := `SELECT user_id, email, role, created_at FROM users WHERE user_id = $1`

	var u model.User
	err := r.pool.QueryRow(ctx, query, userID).Scan(&u.UserID, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id %s: %w", userID, err)
	}
	return &u, nil
}
