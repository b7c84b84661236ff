package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role classifies an authenticated actor. The set is closed: access decisions
// are made by explicit membership, never by ordering or inheritance — an
// Admin is not implicitly a Chef and vice versa.
type Role string

const (
	RoleUser  Role = "user"
	RoleChef  Role = "chef"
	RoleAdmin Role = "admin"
)

// ParseRole converts a wire string into a Role, rejecting anything outside
// the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleChef, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// DisplayName returns the human-readable label for a role.
func (r Role) DisplayName() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleChef:
		return "Chef"
	default:
		return "User"
	}
}

// UnmarshalJSON enforces the closed set at the deserialization boundary so an
// unknown role string from the server or from persisted storage never enters
// the domain.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Identity models the authenticated user as known to the client. It is owned
// by the session store; consumers receive copies and must not retain writable
// references across identity changes.
type Identity struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Role         Role      `json:"role"`
	ProfileImage string    `json:"profile_image,omitempty"`
	IsVerified   bool      `json:"is_verified,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// IdentityPatch carries the profile fields a user may change. Nil fields are
// left untouched by Merge.
type IdentityPatch struct {
	Username     *string `json:"username,omitempty"`
	Email        *string `json:"email,omitempty"`
	FullName     *string `json:"full_name,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// Merge applies the non-nil fields of the patch onto a copy of id.
func (id Identity) Merge(patch IdentityPatch) Identity {
	if patch.Username != nil {
		id.Username = *patch.Username
	}
	if patch.Email != nil {
		id.Email = *patch.Email
	}
	if patch.FullName != nil {
		id.FullName = *patch.FullName
	}
	if patch.Bio != nil {
		id.Bio = *patch.Bio
	}
	if patch.ProfileImage != nil {
		id.ProfileImage = *patch.ProfileImage
	}
	return id
}
