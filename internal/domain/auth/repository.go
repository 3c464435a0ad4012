package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines user data access
type Repository interface {
	UpsertByWallet(ctx context.Context, wallet string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// UpsertByWallet creates the user on first login and bumps last_login_at
// on every subsequent one. wallet must already be normalized to lowercase.
func (r *repository) UpsertByWallet(ctx context.Context, wallet string) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (id, wallet_address, created_at, last_login_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (wallet_address) DO UPDATE SET last_login_at = $3
		RETURNING *
	`, uuid.New(), wallet, time.Now())
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
