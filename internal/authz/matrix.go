// Package authz implements the authorization engine for admin actions.
//
// Permissions are declared as a static lookup table (the permission matrix)
// rather than as conditional checks scattered through handlers. The matrix is
// data, so the full (role, resource, action) cross product can be enumerated
// and unit-tested exhaustively, and adding a resource type or action never
// touches the engine's code.
package authz

import "github.com/hibachi-hq/platform-backend/internal/auth"

// ResourceType identifies a category of admin-managed resource.
type ResourceType string

const (
	ResourceBooking       ResourceType = "booking"
	ResourceCustomer      ResourceType = "customer"
	ResourceLead          ResourceType = "lead"
	ResourceReview        ResourceType = "review"
	ResourceStationConfig ResourceType = "station_config"
	ResourceUserAccount   ResourceType = "user_account"
	ResourceAuditLog      ResourceType = "audit_log"
)

// AllResourceTypes returns every resource type known to the matrix.
func AllResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceBooking,
		ResourceCustomer,
		ResourceLead,
		ResourceReview,
		ResourceStationConfig,
		ResourceUserAccount,
		ResourceAuditLog,
	}
}

// Action is an operation on a resource.
type Action string

const (
	ActionView   Action = "VIEW"
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// AllActions returns every matrix action.
func AllActions() []Action {
	return []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete}
}

// permission keys the matrix.
type permission struct {
	Resource ResourceType
	Action   Action
}

// roleSet is the set of roles structurally allowed for a permission.
type roleSet map[auth.Role]bool

func roles(rs ...auth.Role) roleSet {
	set := make(roleSet, len(rs))
	for _, r := range rs {
		set[r] = true
	}
	return set
}

// Shorthand role groups. Tenant scoping is NOT expressed here — the matrix
// answers only the structural question; the engine applies station scoping for
// TENANT_MANAGER as a separate check.
var (
	allTiers  = roles(auth.RoleSuperAdmin, auth.RoleAdmin, auth.RoleSupport, auth.RoleTenantManager)
	supportUp = roles(auth.RoleSuperAdmin, auth.RoleAdmin, auth.RoleSupport)
	adminUp   = roles(auth.RoleSuperAdmin, auth.RoleAdmin)
	superOnly = roles(auth.RoleSuperAdmin)
)

// matrix is the fixed (resource, action) -> allowed-roles mapping.
//
// Entries absent from the map deny everyone; the audit log deliberately has no
// CREATE/UPDATE/DELETE entry because the trail is append-only through the
// recorder's single writer path and is never mutated via the API.
var matrix = map[permission]roleSet{
	// Bookings: day-to-day operations, every tier participates.
	{ResourceBooking, ActionView}:   allTiers,
	{ResourceBooking, ActionCreate}: allTiers,
	{ResourceBooking, ActionUpdate}: allTiers,
	{ResourceBooking, ActionDelete}: allTiers,

	// Customers: support and up may delete; managers handle their own station's
	// customers otherwise.
	{ResourceCustomer, ActionView}:   allTiers,
	{ResourceCustomer, ActionCreate}: allTiers,
	{ResourceCustomer, ActionUpdate}: allTiers,
	{ResourceCustomer, ActionDelete}: supportUp,

	// Leads: marketing pipeline records.
	{ResourceLead, ActionView}:   allTiers,
	{ResourceLead, ActionCreate}: allTiers,
	{ResourceLead, ActionUpdate}: supportUp,
	{ResourceLead, ActionDelete}: supportUp,

	// Reviews: published content, removal is an admin decision.
	{ResourceReview, ActionView}:   allTiers,
	{ResourceReview, ActionCreate}: supportUp,
	{ResourceReview, ActionUpdate}: adminUp,
	{ResourceReview, ActionDelete}: adminUp,

	// Station configuration: managers may view their own station's config.
	{ResourceStationConfig, ActionView}:   allTiers,
	{ResourceStationConfig, ActionCreate}: adminUp,
	{ResourceStationConfig, ActionUpdate}: adminUp,
	{ResourceStationConfig, ActionDelete}: superOnly,

	// User accounts: sensitive, SUPER_ADMIN only.
	{ResourceUserAccount, ActionView}:   superOnly,
	{ResourceUserAccount, ActionCreate}: superOnly,
	{ResourceUserAccount, ActionUpdate}: superOnly,
	{ResourceUserAccount, ActionDelete}: superOnly,

	// Audit log: read-only for every tier; TENANT_MANAGER reads are forced
	// into their bound station's scope by the engine and the query service.
	{ResourceAuditLog, ActionView}: allTiers,
}

// StructurallyAllowed reports whether the matrix lists the role for the given
// (resource, action) pair, ignoring tenant scoping.
func StructurallyAllowed(role auth.Role, resource ResourceType, action Action) bool {
	return matrix[permission{resource, action}][role]
}

// ValidResourceType reports whether the matrix knows the resource type.
func ValidResourceType(rt ResourceType) bool {
	for _, known := range AllResourceTypes() {
		if known == rt {
			return true
		}
	}
	return false
}
