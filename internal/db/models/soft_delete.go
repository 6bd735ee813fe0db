// soft_delete.go defines the shared soft-delete attributes and the generic
// row shape the soft-delete manager operates on.
package models

import (
	"encoding/json"
	"time"
)

// SoftDelete holds the three attributes every soft-deletable resource carries.
// All three are null while the resource is active. They are mutated only by
// the soft-delete manager (and cleared from existence by the purge job) —
// never by generic resource-update code paths.
type SoftDelete struct {
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy    *string    `db:"deleted_by" json:"deleted_by,omitempty"`
	DeleteReason *string    `db:"delete_reason" json:"delete_reason,omitempty"`
}

// Deleted reports whether the resource is currently soft-deleted.
func (s *SoftDelete) Deleted() bool {
	return s.DeletedAt != nil
}

// ResourceRow is the type-agnostic view of a soft-deletable resource used by
// the soft-delete manager and the delete/restore handlers. Snapshot carries
// the full row as JSON for audit old_values.
type ResourceRow struct {
	ID        string
	Type      string
	StationID *string
	Label     string
	SoftDelete
	Snapshot json.RawMessage
}

// SnapshotMap decodes the row snapshot into a generic map for audit entries.
func (r *ResourceRow) SnapshotMap() map[string]interface{} {
	if len(r.Snapshot) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(r.Snapshot, &m); err != nil {
		return nil
	}
	return m
}
