package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/kanban-service/internal/domain"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUsers) Update(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockUsers) ListActive(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

func (m *mockUsers) ExistingActiveIDs(ctx context.Context, ids []string) ([]string, error) {
	args := m.Called(ctx, ids)
	found, _ := args.Get(0).([]string)
	return found, args.Error(1)
}

func newAuthApp(middleware *AuthMiddleware) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/me", middleware.Handle, RequireActiveUser(), func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.UserID())
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tokens := NewTokenManager("secret", 15)
	active := &domain.User{ID: "user-1", Username: "ada", IsActive: true}
	inactive := &domain.User{ID: "user-2", Username: "bob", IsActive: false}

	users := new(mockUsers)
	users.On("GetByID", mock.Anything, "user-1").Return(active, nil)
	users.On("GetByID", mock.Anything, "user-2").Return(inactive, nil)
	users.On("GetByID", mock.Anything, "user-3").Return(nil, pgx.ErrNoRows)

	revocations := NewMemoryRevocations()
	app := newAuthApp(NewAuthMiddleware(tokens, users, revocations))

	issue := func(userID string) *IssuedToken {
		issued, err := tokens.GenerateToken(userID, "name")
		require.NoError(t, err)
		return issued
	}
	revoked := issue("user-1")
	require.NoError(t, revocations.Revoke(context.Background(), revoked.ID, revoked.ExpiresAt))

	tests := []struct {
		name    string
		prepare func(req *http.Request)
		status  int
	}{
		{"bearer header", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+issue("user-1").Token) }, http.StatusOK},
		{"cookie", func(req *http.Request) {
			req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: issue("user-1").Token})
		}, http.StatusOK},
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"malformed header", func(req *http.Request) { req.Header.Set("Authorization", "Token abc") }, http.StatusUnauthorized},
		{"garbage token", func(req *http.Request) { req.Header.Set("Authorization", "Bearer abc") }, http.StatusUnauthorized},
		{"revoked token", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+revoked.Token) }, http.StatusUnauthorized},
		{"deleted user", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+issue("user-3").Token) }, http.StatusUnauthorized},
		{"inactive user", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+issue("user-2").Token) }, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.prepare(req)

			resp, err := app.Test(req, int(time.Second/time.Millisecond))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
	users.AssertExpectations(t)
}
