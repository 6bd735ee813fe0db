// station_repository.go implements StationRepository over sqlx for station
// (tenant) configuration reads, including the per-station restore window
// override consumed by the soft-delete manager.
package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/hibachi-hq/platform-backend/internal/db/models"
)

// StationRepository handles station configuration database operations.
type StationRepository struct {
	db *sqlx.DB
}

// NewStationRepository creates a new StationRepository
func NewStationRepository(db *sqlx.DB) *StationRepository {
	return &StationRepository{db: db}
}

// GetStation retrieves a station by ID. Returns nil, nil when absent.
func (r *StationRepository) GetStation(ctx context.Context, id string) (*models.Station, error) {
	var station models.Station
	err := r.db.GetContext(ctx, &station, `
		SELECT id, name, city, timezone, restore_window_days,
		       deleted_at, deleted_by, delete_reason, created_at, updated_at
		FROM stations
		WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &station, nil
}

// ListStations returns all active stations ordered by name.
func (r *StationRepository) ListStations(ctx context.Context) ([]*models.Station, error) {
	stations := make([]*models.Station, 0)
	err := r.db.SelectContext(ctx, &stations, `
		SELECT id, name, city, timezone, restore_window_days,
		       deleted_at, deleted_by, delete_reason, created_at, updated_at
		FROM stations
		WHERE deleted_at IS NULL
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return stations, nil
}

// RestoreWindowDays returns the station's restore window override, or nil
// when the station has none (or does not exist), in which case the caller
// falls back to the configured default.
func (r *StationRepository) RestoreWindowDays(ctx context.Context, stationID string) (*int, error) {
	var days sql.NullInt64
	err := r.db.GetContext(ctx, &days, `SELECT restore_window_days FROM stations WHERE id = $1`, stationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !days.Valid {
		return nil, nil
	}
	d := int(days.Int64)
	return &d, nil
}
