// softdelete_store.go implements SoftDeleteStore, the per-type storage layer
// under the soft-delete manager. Each soft-deletable resource type maps to a
// fixed table entry in the registry below; the SQL is assembled from that
// registry only, never from caller input. The three soft-delete columns are
// written exclusively through this store's MarkDeleted/ClearDeleted (and
// removed by Purge), which is what keeps generic update code paths away from
// deletion state.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hibachi-hq/platform-backend/internal/db/models"
)

// tableMeta describes how one resource type is stored.
type tableMeta struct {
	table       string
	labelColumn string
	// stationExpr is the column expression yielding the row's tenant context.
	// Stations are their own tenant; user accounts are tenant-unbound.
	stationExpr string
}

// resourceTables is the fixed registry of soft-deletable resource types.
var resourceTables = map[string]tableMeta{
	"booking":        {table: "bookings", labelColumn: "customer_name", stationExpr: "station_id"},
	"customer":       {table: "customers", labelColumn: "name", stationExpr: "station_id"},
	"lead":           {table: "leads", labelColumn: "name", stationExpr: "station_id"},
	"review":         {table: "reviews", labelColumn: "author_name", stationExpr: "station_id"},
	"station_config": {table: "stations", labelColumn: "name", stationExpr: "id"},
	"user_account":   {table: "users", labelColumn: "email", stationExpr: "NULL"},
}

// SoftDeletableTypes returns the resource types the store knows, for the
// purge job's per-type scan.
func SoftDeletableTypes() []string {
	return []string{"booking", "customer", "lead", "review", "station_config", "user_account"}
}

// SoftDeleteStore reads and mutates soft-deletable resources generically.
type SoftDeleteStore struct {
	db *sql.DB
}

// NewSoftDeleteStore creates a new SoftDeleteStore
func NewSoftDeleteStore(db *sql.DB) *SoftDeleteStore {
	return &SoftDeleteStore{db: db}
}

func meta(resourceType string) (tableMeta, error) {
	m, ok := resourceTables[resourceType]
	if !ok {
		return tableMeta{}, fmt.Errorf("unknown soft-deletable resource type: %q", resourceType)
	}
	return m, nil
}

// selectClause builds the shared column list for resource reads. The full row
// is also captured as JSON so delete audits can snapshot prior values without
// the store knowing each type's schema.
func selectClause(m tableMeta) string {
	return fmt.Sprintf(
		`SELECT r.id::text, %s::text, r.%s, r.deleted_at, r.deleted_by, r.delete_reason, row_to_json(r.*) FROM %s r`,
		qualifyStation(m.stationExpr), m.labelColumn, m.table,
	)
}

func qualifyStation(expr string) string {
	if expr == "NULL" {
		return "NULL"
	}
	return "r." + expr
}

func scanResourceRow(resourceType string, row interface {
	Scan(dest ...interface{}) error
}) (*models.ResourceRow, error) {
	r := &models.ResourceRow{Type: resourceType}
	err := row.Scan(
		&r.ID,
		&r.StationID,
		&r.Label,
		&r.DeletedAt,
		&r.DeletedBy,
		&r.DeleteReason,
		&r.Snapshot,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Get retrieves a resource by type and id without locking. Returns nil, nil
// when the resource does not exist.
func (s *SoftDeleteStore) Get(ctx context.Context, resourceType, id string) (*models.ResourceRow, error) {
	m, err := meta(resourceType)
	if err != nil {
		return nil, err
	}

	query := selectClause(m) + ` WHERE r.id::text = $1`
	r, err := scanResourceRow(resourceType, s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetForUpdate retrieves a resource inside tx and takes a row lock, so
// concurrent delete attempts on the same row serialize here and the second
// writer observes the first writer's committed state.
func (s *SoftDeleteStore) GetForUpdate(ctx context.Context, tx *sql.Tx, resourceType, id string) (*models.ResourceRow, error) {
	m, err := meta(resourceType)
	if err != nil {
		return nil, err
	}

	query := selectClause(m) + ` WHERE r.id::text = $1 FOR UPDATE`
	r, err := scanResourceRow(resourceType, tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// MarkDeleted sets the three soft-delete attributes on an active row. The
// deleted_at IS NULL guard means a row that was deleted between read and
// write reports zero rows affected instead of overwriting the first
// deletion's reason.
func (s *SoftDeleteStore) MarkDeleted(ctx context.Context, tx *sql.Tx, resourceType, id string, at time.Time, by, reason string) (bool, error) {
	m, err := meta(resourceType)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(
		`UPDATE %s SET deleted_at = $1, deleted_by = $2, delete_reason = $3, updated_at = NOW() WHERE id::text = $4 AND deleted_at IS NULL`,
		m.table,
	)
	res, err := tx.ExecContext(ctx, query, at, by, reason, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClearDeleted clears the three soft-delete attributes, returning the row to
// its active state.
func (s *SoftDeleteStore) ClearDeleted(ctx context.Context, tx *sql.Tx, resourceType, id string) (bool, error) {
	m, err := meta(resourceType)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(
		`UPDATE %s SET deleted_at = NULL, deleted_by = NULL, delete_reason = NULL, updated_at = NOW() WHERE id::text = $1 AND deleted_at IS NOT NULL`,
		m.table,
	)
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListSoftDeleted returns soft-deleted rows of one type, oldest deletion
// first. The purge job resolves each row's applicable restore window and
// purges the ones whose window has elapsed.
func (s *SoftDeleteStore) ListSoftDeleted(ctx context.Context, resourceType string, limit int) ([]*models.ResourceRow, error) {
	m, err := meta(resourceType)
	if err != nil {
		return nil, err
	}

	query := selectClause(m) + ` WHERE r.deleted_at IS NOT NULL ORDER BY r.deleted_at ASC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*models.ResourceRow, 0)
	for rows.Next() {
		r, err := scanResourceRow(resourceType, rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Purge physically removes a soft-deleted row inside tx. The deleted_at
// guard makes purging an active row impossible even if the job's view of the
// row is stale.
func (s *SoftDeleteStore) Purge(ctx context.Context, tx *sql.Tx, resourceType, id string) (bool, error) {
	m, err := meta(resourceType)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id::text = $1 AND deleted_at IS NOT NULL`, m.table)
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
