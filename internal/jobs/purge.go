// purge.go implements the Purger background job, which periodically scans for
// soft-deleted rows whose restore window has elapsed and physically removes
// them. Every purge writes a PURGE audit entry in the same transaction as the
// row removal, attributed to a fixed system actor, so the trail shows when and
// why data finally left the database. Rows still inside their window are left
// untouched; the job never purges anything an admin could still restore.
package jobs

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hibachi-hq/platform-backend/internal/audit"
	"github.com/hibachi-hq/platform-backend/internal/auth"
	"github.com/hibachi-hq/platform-backend/internal/db/models"
	"github.com/hibachi-hq/platform-backend/internal/db/repositories"
	"github.com/hibachi-hq/platform-backend/internal/telemetry"
)

// systemActor attributes purge audit entries. Purges are never performed on
// behalf of a human admin; attribution to a person would be a lie in the trail.
var systemActor = &auth.Actor{
	ID:          "system:purge-job",
	Role:        auth.RoleSuperAdmin,
	DisplayName: "Retention Purge Job",
	Email:       "noreply@hibachi-hq.com",
}

// Purger periodically removes soft-deleted rows past their restore window.
type Purger struct {
	db                *sql.DB
	store             *repositories.SoftDeleteStore
	stations          *repositories.StationRepository
	recorder          *audit.Recorder
	defaultWindowDays int
	batchSize         int
	interval          time.Duration
	stopChan          chan struct{}
}

// NewPurger creates a Purger. intervalHours controls how often a cycle runs
// (default 6h); batchSize caps rows examined per resource type per cycle
// (default 500).
func NewPurger(
	db *sql.DB,
	store *repositories.SoftDeleteStore,
	stations *repositories.StationRepository,
	recorder *audit.Recorder,
	defaultWindowDays, intervalHours, batchSize int,
) *Purger {
	if defaultWindowDays <= 0 {
		defaultWindowDays = 30
	}
	if intervalHours <= 0 {
		intervalHours = 6
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Purger{
		db:                db,
		store:             store,
		stations:          stations,
		recorder:          recorder,
		defaultWindowDays: defaultWindowDays,
		batchSize:         batchSize,
		interval:          time.Duration(intervalHours) * time.Hour,
		stopChan:          make(chan struct{}),
	}
}

// Start begins the background purge loop. It runs an initial cycle
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (p *Purger) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("purge job started",
		"interval", p.interval,
		"default_window_days", p.defaultWindowDays,
		"batch_size", p.batchSize)

	p.RunCycle(ctx)

	for {
		select {
		case <-ticker.C:
			p.RunCycle(ctx)
		case <-p.stopChan:
			slog.Info("purge job stopped")
			return
		case <-ctx.Done():
			slog.Info("purge job context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (p *Purger) Stop() {
	close(p.stopChan)
}

// RunCycle scans every soft-deletable resource type once and purges eligible
// rows. Exported so operators can trigger an immediate cycle from tooling.
func (p *Purger) RunCycle(ctx context.Context) {
	start := time.Now()
	var purged, skipped int

	for _, resourceType := range repositories.SoftDeletableTypes() {
		rows, err := p.store.ListSoftDeleted(ctx, resourceType, p.batchSize)
		if err != nil {
			slog.Error("purge job: listing soft-deleted rows failed",
				"resource_type", resourceType, "error", err)
			continue
		}

		for _, row := range rows {
			if ctx.Err() != nil {
				return
			}

			eligible, err := p.windowElapsed(ctx, row)
			if err != nil {
				slog.Error("purge job: resolving restore window failed",
					"resource_type", resourceType, "id", row.ID, "error", err)
				continue
			}
			if !eligible {
				skipped++
				continue
			}

			if err := p.purgeOne(ctx, row); err != nil {
				slog.Error("purge job: purging row failed",
					"resource_type", resourceType, "id", row.ID, "error", err)
				continue
			}
			purged++
			telemetry.PurgesTotal.WithLabelValues(resourceType).Inc()
		}
	}

	telemetry.PurgeCycleDuration.Observe(time.Since(start).Seconds())
	if purged > 0 || skipped > 0 {
		slog.Info("purge cycle complete",
			"purged", purged, "still_in_window", skipped, "duration", time.Since(start))
	}
}

// windowElapsed reports whether the row's restore window has fully elapsed.
// The boundary is inclusive on the restore side, so eligibility requires
// strictly more than the window to have passed.
func (p *Purger) windowElapsed(ctx context.Context, row *models.ResourceRow) (bool, error) {
	if row.DeletedAt == nil {
		return false, nil
	}

	days := p.defaultWindowDays
	if row.StationID != nil {
		override, err := p.stations.RestoreWindowDays(ctx, *row.StationID)
		if err != nil {
			return false, err
		}
		if override != nil {
			days = *override
		}
	}

	window := time.Duration(days) * 24 * time.Hour
	return time.Since(*row.DeletedAt) > window, nil
}

// purgeOne removes one row and writes its PURGE audit entry atomically. The
// deleted_at guard inside Purge means a row restored between the scan and this
// transaction is simply not purged.
func (p *Purger) purgeOne(ctx context.Context, row *models.ResourceRow) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ok, err := p.store.Purge(ctx, tx, row.Type, row.ID)
	if err != nil {
		return err
	}
	if !ok {
		// Restored or already purged since the scan. Nothing to record.
		return nil
	}

	_, err = p.recorder.Write(ctx, tx, &audit.Record{
		Actor:         systemActor,
		Action:        models.AuditActionPurge,
		ResourceType:  row.Type,
		ResourceID:    row.ID,
		ResourceLabel: row.Label,
		StationID:     row.StationID,
		OldValues:     row.SnapshotMap(),
		Metadata: map[string]interface{}{
			"deleted_at": row.DeletedAt,
			"deleted_by": row.DeletedBy,
		},
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}
