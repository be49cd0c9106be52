package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/storefront/internal/platform/httpx"
	"github.com/storefront/storefront/internal/shared"
)

var (
	ErrEmailTaken        = fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	ErrResetTokenInvalid = fmt.Errorf("%w: reset link is invalid or has expired", httpx.ErrValidation)
	ErrProfileNotFound   = fmt.Errorf("profile %w", httpx.ErrNotFound)
)

// User represents an account with credentials.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// Profile is the public side of an account, stored in user_profiles.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p Profile) IsAdmin() bool {
	return p.Role == shared.ClaimAdmin
}

// Principal converts the profile into a session principal.
func (p Profile) Principal() shared.Principal {
	return shared.Principal{UserID: p.ID.String(), Email: p.Email}
}

// SignUpInput is the registration payload.
type SignUpInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

// SignInInput is the login payload.
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResetRequestInput asks for a password reset link.
type ResetRequestInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetConfirmInput sets a new password with a reset token.
type ResetConfirmInput struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
