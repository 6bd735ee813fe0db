// audit_repository.go implements AuditRepository, the storage layer under the
// audit recorder and query service. Inserts go through whatever querier the
// caller supplies — in production always the transaction that also carries the
// resource mutation being documented — and rows are never updated or deleted.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hibachi-hq/platform-backend/internal/db/models"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so audit writes can ride
// inside the caller's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// AuditRepository handles audit log database operations.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs. Keyset pagination
// uses the (created_at, id) pair of the last row of the previous page.
type AuditFilters struct {
	ActorID      *string
	ResourceType *string
	ResourceID   *string
	Action       *string
	StationID    *string
	From         *time.Time
	To           *time.Time

	BeforeCreatedAt *time.Time
	BeforeID        *string
}

// Insert writes a new audit log entry through q. The caller passes the
// transaction carrying the matching resource mutation so the entry and the
// mutation commit or roll back together. Field validation happens upstream in
// the recorder; this layer only persists.
func (r *AuditRepository) Insert(ctx context.Context, q Querier, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	oldJSON, err := marshalJSONB(log.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old_values: %w", err)
	}
	newJSON, err := marshalJSONB(log.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new_values: %w", err)
	}
	metaJSON, err := marshalJSONB(log.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO audit_logs (
			id, created_at, actor_id, actor_role, actor_name, actor_email,
			action, resource_type, resource_id, resource_label, station_id,
			ip_address, user_agent, delete_reason, old_values, new_values, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = q.ExecContext(ctx, query,
		log.ID,
		log.CreatedAt,
		log.ActorID,
		log.ActorRole,
		log.ActorName,
		log.ActorEmail,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.ResourceLabel,
		log.StationID,
		log.IPAddress,
		log.UserAgent,
		log.DeleteReason,
		oldJSON,
		newJSON,
		metaJSON,
	)
	return err
}

// Find retrieves audit logs matching the filters, newest first, at most limit
// rows. Ordering is (created_at DESC, id DESC) so the keyset cursor is stable
// even when multiple entries share a timestamp.
func (r *AuditRepository) Find(ctx context.Context, filters AuditFilters, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, created_at, actor_id, actor_role, actor_name, actor_email,
		       action, resource_type, resource_id, resource_label, station_id,
		       ip_address, user_agent, delete_reason, old_values, new_values, metadata
		FROM audit_logs
		WHERE 1=1
	`

	args := make([]interface{}, 0)
	paramIndex := 1

	addFilter := func(clause string, value interface{}) {
		query += fmt.Sprintf(clause, paramIndex)
		args = append(args, value)
		paramIndex++
	}

	if filters.ActorID != nil {
		addFilter(` AND actor_id = $%d`, *filters.ActorID)
	}
	if filters.ResourceType != nil {
		addFilter(` AND resource_type = $%d`, *filters.ResourceType)
	}
	if filters.ResourceID != nil {
		addFilter(` AND resource_id = $%d`, *filters.ResourceID)
	}
	if filters.Action != nil {
		addFilter(` AND action = $%d`, *filters.Action)
	}
	if filters.StationID != nil {
		addFilter(` AND station_id = $%d`, *filters.StationID)
	}
	if filters.From != nil {
		addFilter(` AND created_at >= $%d`, *filters.From)
	}
	if filters.To != nil {
		addFilter(` AND created_at <= $%d`, *filters.To)
	}
	if filters.BeforeCreatedAt != nil && filters.BeforeID != nil {
		query += fmt.Sprintf(` AND (created_at, id) < ($%d, $%d)`, paramIndex, paramIndex+1)
		args = append(args, *filters.BeforeCreatedAt, *filters.BeforeID)
		paramIndex += 2
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, paramIndex)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// Get retrieves a single audit log entry by ID.
func (r *AuditRepository) Get(ctx context.Context, logID string) (*models.AuditLog, error) {
	query := `
		SELECT id, created_at, actor_id, actor_role, actor_name, actor_email,
		       action, resource_type, resource_id, resource_label, station_id,
		       ip_address, user_agent, delete_reason, old_values, new_values, metadata
		FROM audit_logs
		WHERE id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, logID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanAuditLog(rows)
}

// scanAuditLog reads one audit row, decoding the three JSONB columns.
func scanAuditLog(rows *sql.Rows) (*models.AuditLog, error) {
	log := &models.AuditLog{}
	var oldJSON, newJSON, metaJSON []byte

	err := rows.Scan(
		&log.ID,
		&log.CreatedAt,
		&log.ActorID,
		&log.ActorRole,
		&log.ActorName,
		&log.ActorEmail,
		&log.Action,
		&log.ResourceType,
		&log.ResourceID,
		&log.ResourceLabel,
		&log.StationID,
		&log.IPAddress,
		&log.UserAgent,
		&log.DeleteReason,
		&oldJSON,
		&newJSON,
		&metaJSON,
	)
	if err != nil {
		return nil, err
	}

	if log.OldValues, err = unmarshalJSONB(oldJSON); err != nil {
		return nil, err
	}
	if log.NewValues, err = unmarshalJSONB(newJSON); err != nil {
		return nil, err
	}
	if log.Metadata, err = unmarshalJSONB(metaJSON); err != nil {
		return nil, err
	}
	return log, nil
}

func marshalJSONB(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSONB(b []byte) (map[string]interface{}, error) {
	if b == nil {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
