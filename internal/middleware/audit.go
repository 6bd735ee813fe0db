// audit.go provides Gin middleware that records VIEW entries for successful
// single-resource reads when audit.log_read_operations is enabled. Mutations
// (DELETE, restore, purge) are never recorded here: their audit entries are
// written transactionally by the soft-delete manager so the row change and
// the entry commit or roll back together.
package middleware

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hibachi-hq/platform-backend/internal/audit"
	"github.com/hibachi-hq/platform-backend/internal/authz"
	"github.com/hibachi-hq/platform-backend/internal/config"
	"github.com/hibachi-hq/platform-backend/internal/safego"
)

// ReadAuditMiddleware records a VIEW audit entry after each successful GET of
// a single resource, when cfg.LogReadOperations is true. The write is
// fire-and-forget: read logging is best-effort observability, and a failed
// insert must not fail the read it describes. The 5-second timeout prevents
// leaked goroutines if the DB is temporarily unreachable.
//
// Only routes with :resource_type and :id params produce entries; list
// endpoints and the audit query surface itself are skipped, as is every
// non-2xx response.
// ResourceStationKey is the gin.Context key under which a read handler stores
// the viewed resource's station id (*string, nil for tenant-unbound rows).
// The VIEW entry records the row's tenant context, not the viewer's.
const ResourceStationKey = "resource_station"

func ReadAuditMiddleware(recorder *audit.Recorder, db *sql.DB, cfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if cfg == nil || !cfg.LogReadOperations {
			return
		}
		if c.Request.Method != http.MethodGet {
			return
		}
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}

		resourceType := c.Param("resource_type")
		resourceID := c.Param("id")
		if resourceType == "" || resourceID == "" {
			return
		}
		if !authz.ValidResourceType(authz.ResourceType(resourceType)) {
			return
		}

		actor := ActorFromContext(c)
		if actor == nil {
			return
		}

		var stationID *string
		if v, ok := c.Get(ResourceStationKey); ok {
			stationID, _ = v.(*string)
		}

		rec := &audit.Record{
			Actor:        actor,
			Action:       string(authz.ActionView),
			ResourceType: resourceType,
			ResourceID:   resourceID,
			StationID:    stationID,
			Origin: audit.Origin{
				IPAddress: c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
			},
			Metadata: map[string]interface{}{
				"status_code": c.Writer.Status(),
				"request_id":  c.GetString(RequestIDKey),
			},
		}

		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if _, err := recorder.Write(ctx, db, rec); err != nil {
				slog.Warn("failed to record read audit entry",
					"resource_type", resourceType,
					"resource_id", resourceID,
					"error", err)
			}
		})
	}
}
