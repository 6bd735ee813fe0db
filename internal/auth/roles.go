// Package auth - roles.go defines the four admin role tiers and their ordering.
// A user holds exactly one role at a time. TENANT_MANAGER is the only role bound
// to a single station; the three higher tiers operate across all stations.
package auth

import "fmt"

// Role is one of the four admin role tiers.
type Role string

const (
	RoleSuperAdmin    Role = "SUPER_ADMIN"
	RoleAdmin         Role = "ADMIN"
	RoleSupport       Role = "SUPPORT"
	RoleTenantManager Role = "TENANT_MANAGER"
)

// roleLevels orders the tiers; a higher level means more capability.
var roleLevels = map[Role]int{
	RoleSuperAdmin:    4,
	RoleAdmin:         3,
	RoleSupport:       2,
	RoleTenantManager: 1,
}

// AllRoles returns every valid role, highest tier first.
func AllRoles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleSupport, RoleTenantManager}
}

// Level returns the role's ordinal level (SUPER_ADMIN=4 .. TENANT_MANAGER=1),
// or 0 for an unknown role.
func (r Role) Level() int {
	return roleLevels[r]
}

// Valid reports whether r is one of the four defined tiers.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// AtLeast reports whether r sits at or above the given tier.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && r.Level() >= min.Level()
}

// ParseRole converts a raw claim string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}
