package service

import (
	"context"

	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/repository"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

// UserService manages profiles and the assignable user directory.
type UserService struct {
	users repository.UserRepository
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// Profile loads a user by id.
func (s *UserService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "user", "user_id", userID))
	}
	return user, nil
}

// UpdateProfile applies the fields present in patch.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, patch domain.UserPatch) (*domain.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !patch.Apply(user) {
		return user, nil
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(notFound(err, "user", "user_id", userID))
	}
	return user, nil
}

// ListAssignable returns every active user.
func (s *UserService) ListAssignable(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}
