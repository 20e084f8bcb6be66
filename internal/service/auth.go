// Package service contains the business rules of the API. Handlers decode
// HTTP input and call into here; services validate, enforce ownership and
// talk to the repositories and file storage.
//
//	Handler (HTTP) → Service (rules) → Repository (DB)
//	                                 ↘ Storage (files)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/payload"
	"github.com/sakif/notebox/internal/repository"
)

// AuthService registers users and logs them in.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → issue JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// Register creates an account and returns a token for it.
//
// FLOW:
//  1. Validate the payload
//  2. Reject a taken username or email (409)
//  3. Hash the password and insert the user
//  4. Issue a 7-day token
//
// Two concurrent registrations can both pass step 2; the UNIQUE constraints
// catch the loser in step 3 and the repository reports the same conflict.
func (s *AuthService) Register(ctx context.Context, req payload.RegisterRequest) (string, error) {
	if err := payload.Validate(req); err != nil {
		return "", err
	}

	taken, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return "", fmt.Errorf("service/auth: checking existing user: %w", err)
	}
	if taken {
		return "", apperror.Conflict(repository.MsgUserExists)
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return "", fmt.Errorf("service/auth: creating user %q: %w", req.Username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return token, nil
}

// Login checks the credentials and returns a fresh token.
//
// An unknown username and a wrong password produce the same error, and both
// cost one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, req payload.LoginRequest) (string, error) {
	if err := payload.Validate(req); err != nil {
		return "", err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = s.passwords.VerifyDummy(req.Password)
			return "", apperror.InvalidCredentials()
		}
		return "", fmt.Errorf("service/auth: looking up user %q: %w", req.Username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login failed", slog.String("userID", user.ID))
			return "", apperror.InvalidCredentials()
		}
		return "", fmt.Errorf("service/auth: verifying password for user %s: %w", user.ID, err)
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return token, nil
}
