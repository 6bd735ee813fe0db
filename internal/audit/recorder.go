// Package audit implements the append-only audit trail for sensitive admin
// actions. The Recorder is the single writer path into the audit store: no
// other component inserts, updates, or deletes audit rows, which is what makes
// the trail tamper-evident at the application layer. Entries ride inside the
// same transaction as the resource mutation they document, so a reader can
// never observe one without the other.
package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hibachi-hq/platform-backend/internal/auth"
	"github.com/hibachi-hq/platform-backend/internal/db/models"
	"github.com/hibachi-hq/platform-backend/internal/db/repositories"
	"github.com/hibachi-hq/platform-backend/internal/errs"
	"github.com/hibachi-hq/platform-backend/internal/safego"
	"github.com/hibachi-hq/platform-backend/internal/telemetry"
)

// Delete reasons must be substantive: trimmed length within these bounds.
const (
	MinReasonLength = 10
	MaxReasonLength = 500
)

// Origin describes where a request came from.
type Origin struct {
	IPAddress string
	UserAgent string
}

// Record is the input to Recorder.Record. DeleteReason must be set if and
// only if Action is DELETE.
type Record struct {
	Actor         *auth.Actor
	Action        string
	ResourceType  string
	ResourceID    string
	ResourceLabel string
	StationID     *string
	Origin        Origin
	DeleteReason  string
	OldValues     map[string]interface{}
	NewValues     map[string]interface{}
	Metadata      map[string]interface{}
}

// Recorder validates and persists audit entries.
type Recorder struct {
	repo    *repositories.AuditRepository
	shipper Shipper // optional export mirror, may be nil
}

// NewRecorder creates a Recorder writing through repo, optionally mirroring
// committed entries to shipper.
func NewRecorder(repo *repositories.AuditRepository, shipper Shipper) *Recorder {
	return &Recorder{repo: repo, shipper: shipper}
}

// ValidateReason checks a delete reason against the length bounds after
// trimming surrounding whitespace. Used by both the recorder (write-time
// invariant) and the delete endpoint (request validation), so the two layers
// can never disagree.
func ValidateReason(reason string) error {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return errs.Validation("a delete reason is required")
	}
	if len(trimmed) < MinReasonLength {
		return errs.Validation("delete reason must be at least %d characters, got %d", MinReasonLength, len(trimmed))
	}
	if len(trimmed) > MaxReasonLength {
		return errs.Validation("delete reason must be at most %d characters, got %d", MaxReasonLength, len(trimmed))
	}
	return nil
}

// validate enforces the write-time invariants. Nothing is persisted when this
// fails — no partial or placeholder entries.
func (r *Recorder) validate(rec *Record) error {
	if rec.Actor == nil {
		return errs.Validation("audit record requires an actor")
	}
	if rec.Action == "" || rec.ResourceType == "" || rec.ResourceID == "" {
		return errs.Validation("audit record requires action, resource type, and resource id")
	}

	if rec.Action == models.AuditActionDelete {
		if err := ValidateReason(rec.DeleteReason); err != nil {
			return err
		}
		return nil
	}

	// A reason on a non-DELETE action is a programming-contract violation,
	// not a silent no-op.
	if rec.DeleteReason != "" {
		return errs.Validation("delete_reason is only valid for DELETE actions, got %s", rec.Action)
	}
	return nil
}

// Write validates rec and inserts the entry through q — always the
// transaction carrying the matching resource mutation for mutating actions.
// The returned entry is immutable; corrections are made by writing a new
// corrective entry.
func (r *Recorder) Write(ctx context.Context, q repositories.Querier, rec *Record) (*models.AuditLog, error) {
	if err := r.validate(rec); err != nil {
		return nil, err
	}

	entry := &models.AuditLog{
		ActorID:       rec.Actor.ID,
		ActorRole:     string(rec.Actor.Role),
		ActorName:     rec.Actor.DisplayName,
		ActorEmail:    rec.Actor.Email,
		Action:        rec.Action,
		ResourceType:  rec.ResourceType,
		ResourceID:    rec.ResourceID,
		ResourceLabel: rec.ResourceLabel,
		StationID:     rec.StationID,
		OldValues:     rec.OldValues,
		NewValues:     rec.NewValues,
		Metadata:      rec.Metadata,
		CreatedAt:     time.Now(),
	}
	if rec.Origin.IPAddress != "" {
		ip := rec.Origin.IPAddress
		entry.IPAddress = &ip
	}
	if rec.Origin.UserAgent != "" {
		ua := rec.Origin.UserAgent
		entry.UserAgent = &ua
	}
	if rec.Action == models.AuditActionDelete {
		reason := strings.TrimSpace(rec.DeleteReason)
		entry.DeleteReason = &reason
	}

	if err := r.repo.Insert(ctx, q, entry); err != nil {
		return nil, err
	}
	telemetry.AuditEntriesTotal.WithLabelValues(entry.Action).Inc()

	// Export mirroring is best-effort and asynchronous: the DB row is the
	// authoritative record, and a slow SIEM endpoint must not hold the
	// request transaction open.
	if r.shipper != nil {
		shipped := *entry
		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := r.shipper.Ship(ctx, &shipped); err != nil {
				telemetry.AuditShipErrorsTotal.Inc()
				slog.Warn("audit shipper failed", "entry_id", shipped.ID, "error", err)
			}
		})
	}

	return entry, nil
}
