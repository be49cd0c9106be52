package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefront/storefront/internal/shared"
)

// ClaimSource resolves the claims held by a principal.
type ClaimSource interface {
	Claims(ctx context.Context, p shared.Principal) ([]string, error)
}

// StaticClaims grants the admin claim to a fixed set of emails.
type StaticClaims struct {
	emails map[string]struct{}
}

// NewStaticClaims builds a source from an email allow-list.
func NewStaticClaims(emails []string) StaticClaims {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		set[e] = struct{}{}
	}
	return StaticClaims{emails: set}
}

// Claims implements ClaimSource.
func (s StaticClaims) Claims(_ context.Context, p shared.Principal) ([]string, error) {
	if _, ok := s.emails[strings.ToLower(strings.TrimSpace(p.Email))]; ok {
		return []string{shared.ClaimAdmin}, nil
	}
	return nil, nil
}

// ProfileClaims reads the role column of user_profiles.
type ProfileClaims struct {
	pool *pgxpool.Pool
}

// NewProfileClaims constructs a database-backed claim source.
func NewProfileClaims(pool *pgxpool.Pool) *ProfileClaims {
	return &ProfileClaims{pool: pool}
}

// Claims implements ClaimSource.
func (s *ProfileClaims) Claims(ctx context.Context, p shared.Principal) ([]string, error) {
	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return nil, nil
	}
	var role string
	err = s.pool.QueryRow(ctx, `SELECT role FROM user_profiles WHERE id = $1`, id).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []string{role}, nil
}

var (
	_ ClaimSource = StaticClaims{}
	_ ClaimSource = (*ProfileClaims)(nil)
)
