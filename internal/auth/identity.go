// identity.go defines the Actor identity consumed from the external identity
// provider. Every request arrives with an already-verified identity claim; this
// service trusts the claim and never re-authenticates credentials itself.
package auth

import "fmt"

// Actor is the authenticated identity attached to every admin request.
type Actor struct {
	ID          string
	Role        Role
	DisplayName string
	Email       string

	// BoundStationID is set only for TENANT_MANAGER actors, which are scoped
	// to exactly one station. All other roles are station-unbound.
	BoundStationID *string
}

// Validate checks the structural invariants of an actor claim:
// a known role, and a bound station if and only if the role requires one.
func (a *Actor) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("actor id is required")
	}
	if !a.Role.Valid() {
		return fmt.Errorf("invalid role: %q", a.Role)
	}
	if a.Role == RoleTenantManager {
		if a.BoundStationID == nil || *a.BoundStationID == "" {
			return fmt.Errorf("TENANT_MANAGER actor must carry a bound station id")
		}
	} else if a.BoundStationID != nil {
		return fmt.Errorf("role %s must not carry a bound station id", a.Role)
	}
	return nil
}

// TenantBound reports whether the actor is restricted to a single station.
func (a *Actor) TenantBound() bool {
	return a.Role == RoleTenantManager
}
