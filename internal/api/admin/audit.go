package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hibachi-hq/platform-backend/internal/audit"
	"github.com/hibachi-hq/platform-backend/internal/errs"
)

// AuditHandlers serves the audit trail query endpoints. Tenant scoping and
// role gating live in the query service; the handlers only parse parameters.
type AuditHandlers struct {
	svc *audit.QueryService
}

// NewAuditHandlers creates audit query handlers.
func NewAuditHandlers(svc *audit.QueryService) *AuditHandlers {
	return &AuditHandlers{svc: svc}
}

// auditPage is the list response: a page of entries plus the opaque cursor
// for the next page, empty on the last page.
type auditPage struct {
	Entries    interface{} `json:"entries"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// parseTimeParam parses an optional RFC3339 query parameter.
func parseTimeParam(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errs.Validation("%s must be an RFC3339 timestamp", name)
	}
	return &t, nil
}

// ListAuditLogs handles GET /api/v1/audit-logs.
//
// Filters: actor_id, resource_type, resource_id, action, station_id, from,
// to (RFC3339), cursor, limit. TENANT_MANAGER callers are always scoped to
// their bound station; an explicit mismatching station_id yields 403.
func (h *AuditHandlers) ListAuditLogs(c *gin.Context) {
	actor := actorOrAbort(c)
	if actor == nil {
		return
	}

	filters := audit.QueryFilters{
		ActorID:      c.Query("actor_id"),
		ResourceType: c.Query("resource_type"),
		ResourceID:   c.Query("resource_id"),
		Action:       c.Query("action"),
		StationID:    c.Query("station_id"),
		Cursor:       c.Query("cursor"),
	}

	var err error
	if filters.From, err = parseTimeParam(c, "from"); err != nil {
		writeError(c, err)
		return
	}
	if filters.To, err = parseTimeParam(c, "to"); err != nil {
		writeError(c, err)
		return
	}

	if raw := c.Query("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 0 {
			writeError(c, errs.Validation("limit must be a non-negative integer"))
			return
		}
		filters.Limit = limit
	}

	page, err := h.svc.Query(c.Request.Context(), actor, filters)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, auditPage{
		Entries:    page.Entries,
		NextCursor: page.NextCursor,
	})
}

// GetAuditLog handles GET /api/v1/audit-logs/:id. Entries outside a
// TENANT_MANAGER's station come back 404 rather than 403 so the endpoint
// never confirms the existence of another tenant's entries.
func (h *AuditHandlers) GetAuditLog(c *gin.Context) {
	actor := actorOrAbort(c)
	if actor == nil {
		return
	}

	entry, err := h.svc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}
