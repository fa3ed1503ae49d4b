package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/kanban-service/internal/api/dto"
	"github.com/spec-kit/kanban-service/internal/auth"
	"github.com/spec-kit/kanban-service/internal/domain"
	"github.com/spec-kit/kanban-service/internal/service"
	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

// UsersHandler exposes account and session endpoints.
type UsersHandler struct {
	auth         *service.AuthService
	users        *service.UserService
	cookieSecure bool
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, userService *service.UserService, cookieSecure bool) *UsersHandler {
	return &UsersHandler{auth: authService, users: userService, cookieSecure: cookieSecure}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("email, username, password required", nil)
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// Login handles POST /auth/login. The token is returned in the body and set
// as an http-only cookie.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	user, token, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    token.Token,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		AccessToken: token.Token,
		TokenType:   "bearer",
		ExpiresAt:   token.ExpiresAt,
		User:        userResponse(user),
	}})
}

// Logout handles POST /auth/logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.auth.Logout(c.UserContext(), principal); err != nil {
		return err
	}
	c.ClearCookie(auth.AccessTokenCookie)
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	user, err := h.users.Profile(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// UpdateMe handles PUT /auth/me.
func (h *UsersHandler) UpdateMe(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	var req dto.UserUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.users.UpdateProfile(c.UserContext(), userID, req.Patch())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// ListAssignable handles GET /auth/users.
func (h *UsersHandler) ListAssignable(c *fiber.Ctx) error {
	users, err := h.users.ListAssignable(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignableResponses(users)})
}

func assignableResponses(users []domain.User) []dto.AssignableUserResponse {
	items := make([]dto.AssignableUserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.AssignableUserResponse{
			ID:             user.ID,
			Username:       user.Username,
			FirstName:      user.FirstName,
			LastName:       user.LastName,
			ProfilePicture: user.ProfilePicture,
		})
	}
	return items
}
