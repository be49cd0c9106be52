package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefront/storefront/internal/platform/db"
	"github.com/storefront/storefront/internal/shared"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	CreateUser(ctx context.Context, u User, p Profile) error
	FindByEmail(ctx context.Context, email string) (User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (Profile, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateUser inserts the account and its profile in one transaction.
func (r *PGRepository) CreateUser(ctx context.Context, u User, p Profile) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, password_hash, is_active, created_at, updated_at)
			VALUES ($1, lower($2), $3, $4, $5, $5)`,
			u.ID, u.Email, u.PasswordHash, u.IsActive, u.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_profiles (id, email, first_name, last_name, role, created_at)
			VALUES ($1, lower($2), $3, $4, $5, $6)`,
			p.ID, p.Email, p.FirstName, p.LastName, p.Role, p.CreatedAt)
		return err
	})
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, is_active, created_at
		FROM users WHERE email = lower($1)`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, shared.ErrNotFound
	}
	return u, err
}

// GetProfile loads a user_profiles row.
func (r *PGRepository) GetProfile(ctx context.Context, id uuid.UUID) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, role, created_at
		FROM user_profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Role, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	return p, err
}

// UpdatePassword replaces the password hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
