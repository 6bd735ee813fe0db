// Package models - audit_log.go defines the AuditLog entry recording every
// sensitive admin action: who acted (with their role at the time), what they
// did, to which resource, from where, and — for deletions — why.
// Entries are immutable once written; corrections are made by writing a new
// corrective entry, never by mutating history.
package models

import "time"

// Audit actions. These extend the matrix actions with PURGE, which is recorded
// by the background purge job when a soft-deleted row is physically removed.
const (
	AuditActionView   = "VIEW"
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
	AuditActionPurge  = "PURGE"
)

// AuditLog represents one append-only audit trail entry.
type AuditLog struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Actor snapshot at time of action. Role is captured here because the
	// user's live role may change later; the trail records what it was.
	ActorID    string `json:"actor_id" db:"actor_id"`
	ActorRole  string `json:"actor_role" db:"actor_role"`
	ActorName  string `json:"actor_name" db:"actor_name"`
	ActorEmail string `json:"actor_email" db:"actor_email"`

	Action        string  `json:"action" db:"action"`
	ResourceType  string  `json:"resource_type" db:"resource_type"`
	ResourceID    string  `json:"resource_id" db:"resource_id"`
	ResourceLabel string  `json:"resource_label" db:"resource_label"`
	StationID     *string `json:"station_id,omitempty" db:"station_id"` // nullable tenant context

	// Request origin.
	IPAddress *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent *string `json:"user_agent,omitempty" db:"user_agent"`

	// DeleteReason is present iff Action == DELETE, trimmed length 10..500.
	// The recorder enforces this before any write.
	DeleteReason *string `json:"delete_reason,omitempty" db:"delete_reason"`

	OldValues map[string]interface{} `json:"old_values,omitempty" db:"-"` // prior field values (UPDATE/DELETE)
	NewValues map[string]interface{} `json:"new_values,omitempty" db:"-"` // new field values (CREATE/UPDATE)
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"-"`   // free-form structured context
}
