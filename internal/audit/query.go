package audit

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/hibachi-hq/platform-backend/internal/auth"
	"github.com/hibachi-hq/platform-backend/internal/authz"
	"github.com/hibachi-hq/platform-backend/internal/db/models"
	"github.com/hibachi-hq/platform-backend/internal/db/repositories"
	"github.com/hibachi-hq/platform-backend/internal/errs"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// QueryFilters are the caller-facing filter set for reading the trail.
// Cursor, when set, resumes a previous page.
type QueryFilters struct {
	ActorID      string
	ResourceType string
	ResourceID   string
	Action       string
	StationID    string
	From         *time.Time
	To           *time.Time
	Cursor       string
	Limit        int
}

// Page is one page of audit entries. NextCursor is empty on the last page.
type Page struct {
	Entries    []*models.AuditLog
	NextCursor string
}

// QueryService reads the audit trail with role-aware scoping and keyset
// pagination. Stable ordering is newest first with id as the tiebreaker, so
// entries created in the same microsecond still paginate deterministically.
type QueryService struct {
	repo   *repositories.AuditRepository
	engine *authz.Engine
}

func NewQueryService(repo *repositories.AuditRepository, engine *authz.Engine) *QueryService {
	return &QueryService{repo: repo, engine: engine}
}

// authorize runs the engine check for reading the trail. The tenant context
// is the actor's own station: the trail is not a single station-owned row, so
// a TENANT_MANAGER passes the structural gate here and the per-query station
// scoping below narrows what it sees.
func (s *QueryService) authorize(actor *auth.Actor) error {
	var tenant authz.TenantContext
	if actor != nil {
		tenant.StationID = actor.BoundStationID
	}
	return s.engine.AuthorizeErr(actor, authz.ActionView, authz.ResourceAuditLog, tenant)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// encodeCursor packs the sort key of the last row into an opaque token.
func encodeCursor(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor unpacks a token produced by encodeCursor. Any malformed token
// is a validation error; it never panics or silently restarts pagination.
func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", errs.Validation("invalid cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return time.Time{}, "", errs.Validation("invalid cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", errs.Validation("invalid cursor")
	}
	return ts, parts[1], nil
}

// Query returns one page of audit entries visible to actor.
//
// All roles may read the trail, but TENANT_MANAGER is force-scoped to its
// bound station: the station filter is overwritten server-side rather than
// trusted from the request, and asking for another station explicitly is a
// tenant mismatch.
func (s *QueryService) Query(ctx context.Context, actor *auth.Actor, f QueryFilters) (*Page, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	if actor.TenantBound() {
		bound := *actor.BoundStationID
		if f.StationID != "" && f.StationID != bound {
			return nil, errs.Authorization(errs.CodeTenantMismatch,
				"tenant managers may only view audit entries for their own station")
		}
		f.StationID = bound
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	filters := repositories.AuditFilters{
		ActorID:      optional(f.ActorID),
		ResourceType: optional(f.ResourceType),
		ResourceID:   optional(f.ResourceID),
		Action:       optional(f.Action),
		StationID:    optional(f.StationID),
		From:         f.From,
		To:           f.To,
	}
	if f.Cursor != "" {
		ts, id, err := decodeCursor(f.Cursor)
		if err != nil {
			return nil, err
		}
		filters.BeforeCreatedAt = &ts
		filters.BeforeID = &id
	}

	// Fetch one extra row to learn whether another page exists without a
	// second count query.
	entries, err := s.repo.Find(ctx, filters, limit+1)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}

	page := &Page{Entries: entries}
	if len(entries) > limit {
		page.Entries = entries[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

// Get returns a single entry by id, applying the same tenant scoping as
// Query.
func (s *QueryService) Get(ctx context.Context, actor *auth.Actor, id string) (*models.AuditLog, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errs.NotFound("audit entry %s not found", id)
	}
	if actor.TenantBound() {
		if entry.StationID == nil || *entry.StationID != *actor.BoundStationID {
			return nil, errs.NotFound("audit entry %s not found", id)
		}
	}
	return entry, nil
}
