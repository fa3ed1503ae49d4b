package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/kanban-service/pkg/util/errorutil"
)

// RequireActiveUser rejects callers whose account has been deactivated.
func RequireActiveUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return apperrors.NewUnauthorized("not authenticated")
		}
		if !principal.User.IsActive {
			return apperrors.NewForbidden("inactive user")
		}
		return c.Next()
	}
}
