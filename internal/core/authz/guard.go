// Package authz evaluates declarative access requirements against the
// current identity. It is deliberately flat: roles form a closed set with no
// ordering, and nobody is elevated implicitly. An Admin is denied a
// chef-gated capability unless the requirement lists Admin explicitly.
package authz

import (
	"github.com/cookeasy/recipe-client/internal/core/domain"
)

// Decision is the outcome of evaluating a requirement.
type Decision int

const (
	// Allow grants access.
	Allow Decision = iota
	// DenyUnauthenticated rejects because no identity is present; the UI
	// redirects to login.
	DenyUnauthenticated
	// DenyRole rejects because the identity's role is not acceptable; the
	// UI shows a permission-denied view, the session stays intact.
	DenyRole
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyRole:
		return "deny_role"
	default:
		return "unknown"
	}
}

// Requirement declares what a protected capability demands. Zero value
// requires nothing and always allows.
type Requirement struct {
	// RequireAuth demands a live identity.
	RequireAuth bool
	// AllowedRoles, when non-empty, is the exact set of acceptable roles.
	// Membership is literal: Admin is not a member unless listed.
	AllowedRoles map[domain.Role]struct{}
	// AdminOnly demands exactly RoleAdmin.
	AdminOnly bool
}

// Roles builds an AllowedRoles set.
func Roles(roles ...domain.Role) map[domain.Role]struct{} {
	set := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Evaluate applies the requirement to an identity (nil when signed out).
// Pure: no state, no errors, always a Decision. The checks run in a fixed
// order so an unauthenticated caller hitting an auth-required capability is
// reported as unauthenticated, not as a role problem.
func Evaluate(req Requirement, identity *domain.Identity) Decision {
	if req.RequireAuth && identity == nil {
		return DenyUnauthenticated
	}

	if req.AdminOnly && (identity == nil || identity.Role != domain.RoleAdmin) {
		return DenyRole
	}

	// Role lists are only consulted when an identity is present; a
	// requirement that lists roles without requiring auth admits guests.
	if len(req.AllowedRoles) > 0 && identity != nil {
		if _, ok := req.AllowedRoles[identity.Role]; !ok {
			return DenyRole
		}
	}

	return Allow
}

// Capability helpers mirroring what the recipe UI gates on.

// CanCreateRecipes reports whether the identity may author recipes.
func CanCreateRecipes(identity *domain.Identity) bool {
	return Evaluate(Requirement{
		RequireAuth:  true,
		AllowedRoles: Roles(domain.RoleChef, domain.RoleAdmin),
	}, identity) == Allow
}

// CanAccessAdmin reports whether the identity may open the admin panel.
func CanAccessAdmin(identity *domain.Identity) bool {
	return Evaluate(Requirement{RequireAuth: true, AdminOnly: true}, identity) == Allow
}

// CanEditRecipe reports whether the identity may edit a recipe owned by
// ownerID. Owners edit their own; admins edit anything.
func CanEditRecipe(identity *domain.Identity, ownerID int) bool {
	if identity == nil {
		return false
	}
	return identity.Role == domain.RoleAdmin || identity.ID == ownerID
}

// CanDeleteRecipe mirrors CanEditRecipe.
func CanDeleteRecipe(identity *domain.Identity, ownerID int) bool {
	return CanEditRecipe(identity, ownerID)
}
