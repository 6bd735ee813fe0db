// engine.go evaluates (actor, action, resource, tenant-context) tuples against
// the permission matrix. This is the single mandatory gate: every endpoint that
// creates, updates, deletes, or views a sensitive resource calls Authorize
// before touching data and treats a deny as terminal.
package authz

import (
	"github.com/hibachi-hq/platform-backend/internal/auth"
	"github.com/hibachi-hq/platform-backend/internal/errs"
)

// TenantContext carries the station a resource belongs to. A nil StationID
// means the resource is not station-scoped (e.g. a user account).
type TenantContext struct {
	StationID *string
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	// Reason is set on deny: errs.CodeInsufficientRole or errs.CodeTenantMismatch.
	Reason string
}

// Allow is the affirmative decision.
var Allow = Decision{Allowed: true}

// Deny constructs a denial with the given reason code.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Engine evaluates authorization decisions. It holds no mutable state — the
// matrix is immutable after process start — so a single Engine is safe for
// unlimited concurrent readers.
type Engine struct{}

// NewEngine creates the authorization engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Authorize decides whether the actor may perform the action on the resource
// type within the given tenant context.
//
// The check runs in two stages: structural permission from the matrix, then
// station scoping for TENANT_MANAGER. The three higher tiers intentionally
// skip the scoping stage — cross-station access is part of their job.
func (e *Engine) Authorize(actor *auth.Actor, action Action, resource ResourceType, tenant TenantContext) Decision {
	if actor == nil || !actor.Role.Valid() {
		return Deny(errs.CodeInsufficientRole)
	}

	if !StructurallyAllowed(actor.Role, resource, action) {
		return Deny(errs.CodeInsufficientRole)
	}

	if actor.TenantBound() {
		if actor.BoundStationID == nil {
			// Actor.Validate rejects this shape at the auth boundary; treat a
			// stray instance as a scope mismatch rather than panicking.
			return Deny(errs.CodeTenantMismatch)
		}
		if tenant.StationID == nil || *tenant.StationID != *actor.BoundStationID {
			return Deny(errs.CodeTenantMismatch)
		}
	}

	return Allow
}

// AuthorizeErr is Authorize with the deny mapped onto the error taxonomy,
// for call sites that propagate errors rather than branch on Decision.
func (e *Engine) AuthorizeErr(actor *auth.Actor, action Action, resource ResourceType, tenant TenantContext) error {
	d := e.Authorize(actor, action, resource, tenant)
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case errs.CodeTenantMismatch:
		return errs.Authorization(errs.CodeTenantMismatch,
			"actor is bound to a different station than resource")
	default:
		role := auth.Role("")
		if actor != nil {
			role = actor.Role
		}
		return errs.Authorization(errs.CodeInsufficientRole,
			"role %q may not %s %s", role, action, resource)
	}
}
