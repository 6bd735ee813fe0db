package admin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hibachi-hq/platform-backend/internal/db/models"
	"github.com/hibachi-hq/platform-backend/internal/errs"
	"github.com/hibachi-hq/platform-backend/internal/middleware"
	"github.com/hibachi-hq/platform-backend/internal/softdelete"
)

// ResourceHandlers serves the delete/restore/view endpoints for
// soft-deletable resources.
type ResourceHandlers struct {
	manager *softdelete.Manager
}

// NewResourceHandlers creates resource handlers backed by the soft-delete
// manager.
func NewResourceHandlers(manager *softdelete.Manager) *ResourceHandlers {
	return &ResourceHandlers{manager: manager}
}

// deleteRequest is the DELETE body. The reason is re-validated server-side
// regardless of any client-side checks; the client's acknowledgment checkbox
// is advisory UX and never reaches the wire.
type deleteRequest struct {
	Reason string `json:"reason"`
}

// resourceResponse presents a resource with its soft-delete state. Resource
// carries the full row as stored; the top-level fields are the authoritative
// lifecycle state.
type resourceResponse struct {
	ResourceType string      `json:"resource_type"`
	ID           string      `json:"id"`
	StationID    *string     `json:"station_id,omitempty"`
	Label        string      `json:"label,omitempty"`
	Deleted      bool        `json:"deleted"`
	DeletedAt    *time.Time  `json:"deleted_at,omitempty"`
	DeletedBy    *string     `json:"deleted_by,omitempty"`
	DeleteReason *string     `json:"delete_reason,omitempty"`
	Resource     interface{} `json:"resource,omitempty"`
}

func toResourceResponse(row *models.ResourceRow) resourceResponse {
	resp := resourceResponse{
		ResourceType: row.Type,
		ID:           row.ID,
		StationID:    row.StationID,
		Label:        row.Label,
		Deleted:      row.Deleted(),
		DeletedAt:    row.DeletedAt,
		DeletedBy:    row.DeletedBy,
		DeleteReason: row.DeleteReason,
	}
	if m := row.SnapshotMap(); m != nil {
		resp.Resource = m
	}
	return resp
}

// DeleteResource handles DELETE /api/v1/:resource_type/:id.
//
// Success returns the deletion receipt including the restore deadline so the
// client can tell the operator exactly how long the undo window lasts.
func (h *ResourceHandlers) DeleteResource(c *gin.Context) {
	actor := actorOrAbort(c)
	if actor == nil {
		return
	}

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("request body must be JSON with a reason field"))
		return
	}

	deletion, err := h.manager.Delete(
		c.Request.Context(),
		actor,
		c.Param("resource_type"),
		c.Param("id"),
		req.Reason,
		originFrom(c),
	)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, deletion)
}

// RestoreResource handles POST /api/v1/:resource_type/:id/restore. No body:
// restoring needs no reason, only UPDATE authorization and an unexpired
// window.
func (h *ResourceHandlers) RestoreResource(c *gin.Context) {
	actor := actorOrAbort(c)
	if actor == nil {
		return
	}

	row, err := h.manager.Restore(
		c.Request.Context(),
		actor,
		c.Param("resource_type"),
		c.Param("id"),
		originFrom(c),
	)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResourceResponse(row))
}

// GetResource handles GET /api/v1/:resource_type/:id. Soft-deleted rows are
// returned with their lifecycle state so an operator can inspect a deletion
// before deciding to restore.
func (h *ResourceHandlers) GetResource(c *gin.Context) {
	actor := actorOrAbort(c)
	if actor == nil {
		return
	}

	row, err := h.manager.Get(
		c.Request.Context(),
		actor,
		c.Param("resource_type"),
		c.Param("id"),
	)
	if err != nil {
		writeError(c, err)
		return
	}

	// The read-audit middleware tags the VIEW entry with the row's station.
	c.Set(middleware.ResourceStationKey, row.StationID)
	c.JSON(http.StatusOK, toResourceResponse(row))
}
