package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/kanban-service/internal/auth"
	"github.com/spec-kit/kanban-service/internal/config"
	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/repository/memory"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

func newAuthService(t *testing.T) (*AuthService, *UserService, *auth.MemoryRevocations) {
	t.Helper()
	cfg := config.Config{Auth: config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 30,
		BcryptCost:            bcrypt.MinCost,
	}}
	users := memory.NewStore().Repositories().Users
	revocations := auth.NewMemoryRevocations()
	return NewAuthService(cfg, AuthDependencies{UserRepo: users, Revocations: revocations}), NewUserService(users), revocations
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAuthService(t)

	user, err := svc.Register(ctx, RegisterInput{Email: " Ada@Example.COM ", Username: "ada", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "s3cret", user.PasswordHash)

	loggedIn, token, err := svc.Login(ctx, "ada", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := svc.TokenManager().ParseToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "ada", claims.Subject)
	assert.Equal(t, token.ID, claims.ID)
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAuthService(t)
	_, err := svc.Register(ctx, RegisterInput{Email: "ada@example.com", Username: "ada", Password: "pw"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input RegisterInput
		code  string
	}{
		{"same username", RegisterInput{Email: "other@example.com", Username: "ada", Password: "pw"}, apperrors.CodeConflict},
		{"same email in other case", RegisterInput{Email: "ADA@example.com", Username: "ada2", Password: "pw"}, apperrors.CodeConflict},
		{"invalid email", RegisterInput{Email: "not-an-email", Username: "bob", Password: "pw"}, apperrors.CodeValidation},
		{"missing password", RegisterInput{Email: "bob@example.com", Username: "bob"}, apperrors.CodeValidation},
		{"blank username", RegisterInput{Email: "bob@example.com", Username: "  ", Password: "pw"}, apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.input)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLoginFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAuthService(t)
	_, err := svc.Register(ctx, RegisterInput{Email: "ada@example.com", Username: "ada", Password: "right"})
	require.NoError(t, err)

	_, _, wrongPassword := svc.Login(ctx, "ada", "wrong")
	_, _, unknownUser := svc.Login(ctx, "nobody", "right")

	assert.True(t, apperrors.HasCode(wrongPassword, apperrors.CodeUnauthorized))
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc, _, revocations := newAuthService(t)
	user, err := svc.Register(ctx, RegisterInput{Email: "ada@example.com", Username: "ada", Password: "pw"})
	require.NoError(t, err)
	_, token, err := svc.Login(ctx, "ada", "pw")
	require.NoError(t, err)
	claims, err := svc.TokenManager().ParseToken(token.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, &auth.Principal{User: user, TokenID: token.ID, Claims: claims}))

	revoked, err := revocations.IsRevoked(ctx, token.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestUserProfile(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newAuthService(t)
	ada, err := svc.Register(ctx, RegisterInput{Email: "ada@example.com", Username: "ada", Password: "pw"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "bob@example.com", Username: "bob", Password: "pw"})
	require.NoError(t, err)

	updated, err := users.UpdateProfile(ctx, ada.ID, domain.UserPatch{FirstName: domain.Some("Ada")})
	require.NoError(t, err)
	require.NotNil(t, updated.FirstName)
	assert.Equal(t, "Ada", *updated.FirstName)

	profile, err := users.Profile(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", *profile.FirstName)

	assignable, err := users.ListAssignable(ctx)
	require.NoError(t, err)
	require.Len(t, assignable, 2)
	assert.Equal(t, "ada", assignable[0].Username)

	_, err = users.Profile(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
