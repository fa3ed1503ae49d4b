package dto

import (
	"time"

	"github.com/spec-kit/kanban-service/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// UserUpdateRequest is a partial profile update.
type UserUpdateRequest struct {
	FirstName      domain.Optional[string] `json:"first_name"`
	LastName       domain.Optional[string] `json:"last_name"`
	ProfilePicture domain.Optional[string] `json:"profile_picture"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FirstName      *string   `json:"first_name"`
	LastName       *string   `json:"last_name"`
	ProfilePicture *string   `json:"profile_picture"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AssignableUserResponse is the reduced view used by assignee pickers.
type AssignableUserResponse struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	ProfilePicture *string `json:"profile_picture"`
}

// Patch converts the request into a domain patch.
func (r UserUpdateRequest) Patch() domain.UserPatch {
	return domain.UserPatch{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		ProfilePicture: r.ProfilePicture,
	}
}
