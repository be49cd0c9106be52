// Package auth manages shopper accounts: registration, sign-in and
// password resets.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/storefront/storefront/internal/shared"
)

// ResetMailer delivers password reset links.
type ResetMailer interface {
	PasswordReset(ctx context.Context, email, token string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	tokens   ResetTokens
	mailer   ResetMailer
	validate *validator.Validate
	logger   *slog.Logger
	cost     int
	now      func() time.Time
}

// NewService constructs a new Service. mailer may be nil, in which case
// reset requests are only logged.
func NewService(repo Repository, tokens ResetTokens, mailer ResetMailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		validate: shared.NewValidator(),
		logger:   logger,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// SignUp registers a customer account with its profile.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (Profile, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Profile{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Profile{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	id := uuid.New()
	user := User{ID: id, Email: in.Email, PasswordHash: string(hash), IsActive: true, CreatedAt: now}
	profile := Profile{
		ID:        id,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      shared.ClaimCustomer,
		CreatedAt: now,
	}
	if err := s.repo.CreateUser(ctx, user, profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// Authenticate validates email/password credentials and returns the profile.
func (s *Service) Authenticate(ctx context.Context, in SignInInput) (Profile, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Profile{}, err
	}
	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Profile{}, shared.ErrInvalidCredentials
		}
		return Profile{}, err
	}
	if !user.IsActive {
		return Profile{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return Profile{}, shared.ErrInvalidCredentials
	}
	return s.repo.GetProfile(ctx, user.ID)
}

// Profile returns the profile of a signed-in principal.
func (s *Service) Profile(ctx context.Context, p shared.Principal) (Profile, error) {
	if p.Anonymous() {
		return Profile{}, shared.ErrSignInRequired
	}
	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return Profile{}, shared.ErrSignInRequired
	}
	return s.repo.GetProfile(ctx, id)
}

// RequestPasswordReset issues a token and mails it. Unknown emails succeed
// silently.
func (s *Service) RequestPasswordReset(ctx context.Context, in ResetRequestInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return err
	}
	user, err := s.repo.FindByEmail(ctx, in.Email)
	if errors.Is(err, shared.ErrNotFound) {
		s.logger.Info("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	if s.mailer == nil {
		s.logger.Warn("password reset mailer not configured", slog.String("user_id", user.ID.String()))
		return nil
	}
	if err := s.mailer.PasswordReset(ctx, user.Email, token); err != nil {
		return fmt.Errorf("enqueue reset mail: %w", err)
	}
	return nil
}

// ConfirmPasswordReset consumes token and stores the new password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, in ResetConfirmInput) error {
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return err
	}
	userID, err := s.tokens.Consume(ctx, in.Token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash), s.now().UTC()); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	return nil
}
