// Package softdelete implements reversible deletion for the resource types the
// admin surface exposes. A delete never removes the row; it stamps deleted_at,
// deleted_by, and delete_reason, and the row stays restorable until its
// restore window elapses. The resource mutation and its audit entry always
// share one transaction, and the row is locked for the duration, so two
// concurrent deletes serialize and the loser sees a conflict instead of
// silently overwriting the first deletion's reason.
package softdelete

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hibachi-hq/platform-backend/internal/audit"
	"github.com/hibachi-hq/platform-backend/internal/auth"
	"github.com/hibachi-hq/platform-backend/internal/authz"
	"github.com/hibachi-hq/platform-backend/internal/db/models"
	"github.com/hibachi-hq/platform-backend/internal/db/repositories"
	"github.com/hibachi-hq/platform-backend/internal/errs"
	"github.com/hibachi-hq/platform-backend/internal/telemetry"
)

// DefaultRestoreWindowDays applies when neither config nor the resource's
// station override a window.
const DefaultRestoreWindowDays = 30

// Deletion describes a completed soft delete.
type Deletion struct {
	ResourceType    string    `json:"resource_type"`
	ResourceID      string    `json:"resource_id"`
	DeletedAt       time.Time `json:"deleted_at"`
	DeletedBy       string    `json:"deleted_by"`
	Reason          string    `json:"reason"`
	RestoreDeadline time.Time `json:"restore_deadline"`
}

// Manager performs soft deletes and restores. All mutations run inside a
// transaction it opens on db; the injected recorder writes the audit entry
// through that same transaction.
type Manager struct {
	db                *sql.DB
	store             *repositories.SoftDeleteStore
	stations          *repositories.StationRepository
	engine            *authz.Engine
	recorder          *audit.Recorder
	defaultWindowDays int
}

// NewManager creates a Manager. defaultWindowDays <= 0 falls back to
// DefaultRestoreWindowDays.
func NewManager(
	db *sql.DB,
	store *repositories.SoftDeleteStore,
	stations *repositories.StationRepository,
	engine *authz.Engine,
	recorder *audit.Recorder,
	defaultWindowDays int,
) *Manager {
	if defaultWindowDays <= 0 {
		defaultWindowDays = DefaultRestoreWindowDays
	}
	return &Manager{
		db:                db,
		store:             store,
		stations:          stations,
		engine:            engine,
		recorder:          recorder,
		defaultWindowDays: defaultWindowDays,
	}
}

// restoreWindow resolves the window applying to a resource: the station's
// configured override when the resource has a station context, the process
// default otherwise.
func (m *Manager) restoreWindow(ctx context.Context, stationID *string) (time.Duration, error) {
	days := m.defaultWindowDays
	if stationID != nil {
		override, err := m.stations.RestoreWindowDays(ctx, *stationID)
		if err != nil {
			return 0, fmt.Errorf("resolving restore window for station %s: %w", *stationID, err)
		}
		if override != nil {
			days = *override
		}
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// load validates the resource type, locks the row, and runs the full
// authorization check against the row's tenant context.
func (m *Manager) load(ctx context.Context, tx *sql.Tx, actor *auth.Actor, action authz.Action, resourceType, id string) (*models.ResourceRow, error) {
	row, err := m.store.GetForUpdate(ctx, tx, resourceType, id)
	if err != nil {
		return nil, fmt.Errorf("loading %s %s: %w", resourceType, id, err)
	}
	if row == nil {
		return nil, errs.NotFound("%s %s not found", resourceType, id)
	}
	if err := m.engine.AuthorizeErr(actor, action, authz.ResourceType(resourceType), authz.TenantContext{StationID: row.StationID}); err != nil {
		return nil, err
	}
	return row, nil
}

// structuralCheck denies before any row is read, so an actor whose role can
// never touch the type learns nothing about whether the id exists.
func (m *Manager) structuralCheck(actor *auth.Actor, action authz.Action, resourceType string) error {
	rt := authz.ResourceType(resourceType)
	if !authz.ValidResourceType(rt) || rt == authz.ResourceAuditLog {
		return errs.Validation("unknown resource type %q", resourceType)
	}
	if actor == nil || !actor.Role.Valid() {
		return errs.Authorization(errs.CodeInsufficientRole, "authentication required")
	}
	if !authz.StructurallyAllowed(actor.Role, rt, action) {
		return errs.Authorization(errs.CodeInsufficientRole,
			"role %q may not %s %s", actor.Role, action, resourceType)
	}
	return nil
}

// Delete soft-deletes a resource. The reason is mandatory and substantive;
// the stamped attributes and the DELETE audit entry commit atomically.
func (m *Manager) Delete(ctx context.Context, actor *auth.Actor, resourceType, id, reason string, origin audit.Origin) (*Deletion, error) {
	if err := audit.ValidateReason(reason); err != nil {
		return nil, err
	}
	// The audit entry stores the trimmed reason; persist the same form on the
	// row so the two never disagree.
	reason = strings.TrimSpace(reason)
	if err := m.structuralCheck(actor, authz.ActionDelete, resourceType); err != nil {
		return nil, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	row, err := m.load(ctx, tx, actor, authz.ActionDelete, resourceType, id)
	if err != nil {
		return nil, err
	}
	if row.Deleted() {
		return nil, errs.Conflict("%s %s is already deleted", resourceType, id)
	}

	now := time.Now()
	ok, err := m.store.MarkDeleted(ctx, tx, resourceType, id, now, actor.ID, reason)
	if err != nil {
		return nil, fmt.Errorf("marking %s %s deleted: %w", resourceType, id, err)
	}
	if !ok {
		// Row changed underneath us despite the lock, e.g. purged between
		// statements. Treat as a conflict, same as losing the delete race.
		return nil, errs.Conflict("%s %s changed during delete", resourceType, id)
	}

	_, err = m.recorder.Write(ctx, tx, &audit.Record{
		Actor:         actor,
		Action:        models.AuditActionDelete,
		ResourceType:  resourceType,
		ResourceID:    id,
		ResourceLabel: row.Label,
		StationID:     row.StationID,
		Origin:        origin,
		DeleteReason:  reason,
		OldValues:     row.SnapshotMap(),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}
	telemetry.SoftDeletesTotal.WithLabelValues(resourceType).Inc()

	window, err := m.restoreWindow(ctx, row.StationID)
	if err != nil {
		// The delete is committed; a window lookup failure only degrades the
		// deadline shown to the caller.
		window = time.Duration(m.defaultWindowDays) * 24 * time.Hour
	}

	return &Deletion{
		ResourceType:    resourceType,
		ResourceID:      id,
		DeletedAt:       now,
		DeletedBy:       actor.ID,
		Reason:          reason,
		RestoreDeadline: now.Add(window),
	}, nil
}

// Restore returns a soft-deleted resource to its active state. Allowed only
// while the restore window is open; the boundary is inclusive, so a restore
// at exactly deleted_at plus the window still succeeds.
func (m *Manager) Restore(ctx context.Context, actor *auth.Actor, resourceType, id string, origin audit.Origin) (*models.ResourceRow, error) {
	if err := m.structuralCheck(actor, authz.ActionUpdate, resourceType); err != nil {
		return nil, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning restore transaction: %w", err)
	}
	defer tx.Rollback()

	row, err := m.load(ctx, tx, actor, authz.ActionUpdate, resourceType, id)
	if err != nil {
		return nil, err
	}
	if !row.Deleted() {
		return nil, errs.Conflict("%s %s is not deleted", resourceType, id)
	}

	window, err := m.restoreWindow(ctx, row.StationID)
	if err != nil {
		return nil, err
	}
	if time.Since(*row.DeletedAt) > window {
		return nil, errs.WindowExpired(
			"%s %s was deleted more than %d days ago and can no longer be restored",
			resourceType, id, int(window/(24*time.Hour)))
	}

	ok, err := m.store.ClearDeleted(ctx, tx, resourceType, id)
	if err != nil {
		return nil, fmt.Errorf("restoring %s %s: %w", resourceType, id, err)
	}
	if !ok {
		return nil, errs.Conflict("%s %s changed during restore", resourceType, id)
	}

	_, err = m.recorder.Write(ctx, tx, &audit.Record{
		Actor:         actor,
		Action:        models.AuditActionUpdate,
		ResourceType:  resourceType,
		ResourceID:    id,
		ResourceLabel: row.Label,
		StationID:     row.StationID,
		Origin:        origin,
		OldValues:     row.SnapshotMap(),
		Metadata: map[string]interface{}{
			"operation":  "restore",
			"deleted_at": row.DeletedAt,
			"deleted_by": row.DeletedBy,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing restore: %w", err)
	}
	telemetry.RestoresTotal.WithLabelValues(resourceType).Inc()

	restored := *row
	restored.DeletedAt = nil
	restored.DeletedBy = nil
	restored.DeleteReason = nil
	return &restored, nil
}

// Get returns the current state of a resource, including its soft-delete
// attributes, for view endpoints. No lock is taken.
func (m *Manager) Get(ctx context.Context, actor *auth.Actor, resourceType, id string) (*models.ResourceRow, error) {
	if err := m.structuralCheck(actor, authz.ActionView, resourceType); err != nil {
		return nil, err
	}

	row, err := m.store.Get(ctx, resourceType, id)
	if err != nil {
		return nil, fmt.Errorf("loading %s %s: %w", resourceType, id, err)
	}
	if row == nil {
		return nil, errs.NotFound("%s %s not found", resourceType, id)
	}
	if err := m.engine.AuthorizeErr(actor, authz.ActionView, authz.ResourceType(resourceType), authz.TenantContext{StationID: row.StationID}); err != nil {
		return nil, err
	}
	return row, nil
}
