package domain

import "time"

// User is the domain model for board owners and collaborators.
type User struct {
	ID             string
	Email          string
	Username       string
	FirstName      *string
	LastName       *string
	PasswordHash   string
	ProfilePicture *string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserPatch lists the profile fields a user may change about themselves.
type UserPatch struct {
	FirstName      Optional[string]
	LastName       Optional[string]
	ProfilePicture Optional[string]
}

// Apply merges the present fields into user and reports whether anything was set.
func (p UserPatch) Apply(user *User) bool {
	changed := false
	if p.FirstName.Set {
		user.FirstName = p.FirstName.Ptr()
		changed = true
	}
	if p.LastName.Set {
		user.LastName = p.LastName.Ptr()
		changed = true
	}
	if p.ProfilePicture.Set {
		user.ProfilePicture = p.ProfilePicture.Ptr()
		changed = true
	}
	return changed
}
