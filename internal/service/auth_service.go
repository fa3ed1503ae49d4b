package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/kanban-service/internal/auth"
	"github.com/spec-kit/kanban-service/internal/config"
	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/repository"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

// AuthService coordinates registration, login and logout.
type AuthService struct {
	users       repository.UserRepository
	tokenMgr    *auth.TokenManager
	revocations auth.Revocations
	bcryptCost  int
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	Revocations auth.Revocations
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:       deps.UserRepo,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		revocations: deps.Revocations,
		bcryptCost:  cfg.Auth.BcryptCost,
	}
}

// Register creates a new active account.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	username, err := requireText("username", input.Username)
	if err != nil {
		return nil, err
	}
	email, err := requireText("email", input.Email)
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"email": email})
	}
	if input.Password == "" {
		return nil, apperrors.NewValidationError("password is required", map[string]any{"field": "password"})
	}

	if taken, err := s.exists(ctx, s.users.GetByUsername, username); err != nil || taken {
		return nil, alreadyRegistered(err)
	}
	if taken, err := s.exists(ctx, s.users.GetByEmail, email); err != nil || taken {
		return nil, alreadyRegistered(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, alreadyRegistered(nil)
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, *auth.IssuedToken, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("incorrect username or password")
		}
		return nil, nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("incorrect username or password")
	}
	token, err := s.tokenMgr.GenerateToken(user.ID, user.Username)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

// Logout revokes the caller's token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if s.revocations == nil || principal == nil || principal.Claims == nil || principal.Claims.ExpiresAt == nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, principal.TokenID, principal.Claims.ExpiresAt.Time); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) exists(ctx context.Context, lookup func(context.Context, string) (*domain.User, error), value string) (bool, error) {
	if _, err := lookup(ctx, value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func alreadyRegistered(err error) error {
	if err != nil {
		return apperrors.MapError(err)
	}
	return apperrors.NewConflict("username or email already registered", nil)
}
