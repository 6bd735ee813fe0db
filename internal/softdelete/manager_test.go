package softdelete

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hibachi-hq/platform-backend/internal/audit"
	"github.com/hibachi-hq/platform-backend/internal/auth"
	"github.com/hibachi-hq/platform-backend/internal/authz"
	"github.com/hibachi-hq/platform-backend/internal/db/repositories"
	"github.com/hibachi-hq/platform-backend/internal/errs"
)

const validReason = "duplicate booking created by a double submit"

var resourceColumns = []string{
	"id", "station_id", "label", "deleted_at", "deleted_by", "delete_reason", "row_to_json",
}

func newManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stations := repositories.NewStationRepository(sqlx.NewDb(db, "postgres"))
	recorder := audit.NewRecorder(repositories.NewAuditRepository(db), nil)
	m := NewManager(db, repositories.NewSoftDeleteStore(db), stations, authz.NewEngine(), recorder, 30)
	return m, mock
}

func admin() *auth.Actor {
	return &auth.Actor{
		ID:          "u-admin",
		Role:        auth.RoleAdmin,
		DisplayName: "Dana Ops",
		Email:       "dana@example.com",
	}
}

func tenantManager(stationID string) *auth.Actor {
	return &auth.Actor{
		ID:             "u-tm",
		Role:           auth.RoleTenantManager,
		DisplayName:    "Kenji Sato",
		Email:          "kenji@example.com",
		BoundStationID: &stationID,
	}
}

func activeBookingRow() *sqlmock.Rows {
	return sqlmock.NewRows(resourceColumns).AddRow(
		"b-1", "st-1", "Birthday party 6/14", nil, nil, nil,
		[]byte(`{"id":"b-1","customer_name":"Birthday party 6/14","station_id":"st-1"}`),
	)
}

func deletedBookingRow(deletedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(resourceColumns).AddRow(
		"b-1", "st-1", "Birthday party 6/14", deletedAt, "u-admin", validReason,
		[]byte(`{"id":"b-1","customer_name":"Birthday party 6/14","station_id":"st-1"}`),
	)
}

func expectWindowLookup(mock sqlmock.Sqlmock, override interface{}) {
	mock.ExpectQuery("SELECT restore_window_days FROM stations").
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows([]string{"restore_window_days"}).AddRow(override))
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestDelete_CommitsMutationAndAuditTogether(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(activeBookingRow())
	mock.ExpectExec("UPDATE bookings SET deleted_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectWindowLookup(mock, nil)

	d, err := m.Delete(context.Background(), admin(), "booking", "b-1", validReason,
		audit.Origin{IPAddress: "10.0.0.9"})
	require.NoError(t, err)

	assert.Equal(t, "booking", d.ResourceType)
	assert.Equal(t, "b-1", d.ResourceID)
	assert.Equal(t, "u-admin", d.DeletedBy)
	assert.Equal(t, validReason, d.Reason)
	// Default 30 day window with no station override.
	assert.WithinDuration(t, d.DeletedAt.Add(30*24*time.Hour), d.RestoreDeadline, time.Second)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_PersistsTrimmedReason(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(activeBookingRow())
	// The row must receive the same trimmed form the audit entry stores.
	mock.ExpectExec("UPDATE bookings SET deleted_at").
		WithArgs(sqlmock.AnyArg(), "u-admin", validReason, "b-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectWindowLookup(mock, nil)

	d, err := m.Delete(context.Background(), admin(), "booking", "b-1",
		"  "+validReason+"\n", audit.Origin{})
	require.NoError(t, err)
	assert.Equal(t, validReason, d.Reason)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_RejectsShortReasonBeforeTouchingDB(t *testing.T) {
	m, mock := newManager(t)

	_, err := m.Delete(context.Background(), admin(), "booking", "b-1", "too short", audit.Origin{})
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	// No expectations registered: any DB traffic fails the test.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_InsufficientRoleBeforeRowRead(t *testing.T) {
	m, mock := newManager(t)

	// SUPPORT cannot delete reviews; the deny happens before any query, so
	// the caller learns nothing about whether the id exists.
	support := &auth.Actor{ID: "u-s", Role: auth.RoleSupport}
	_, err := m.Delete(context.Background(), support, "review", "r-1", validReason, audit.Origin{})
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.CodeInsufficientRole, e.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_UnknownResourceType(t *testing.T) {
	m, _ := newManager(t)

	_, err := m.Delete(context.Background(), admin(), "invoice", "i-1", validReason, audit.Origin{})
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestDelete_NotFound(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(resourceColumns))
	mock.ExpectRollback()

	_, err := m.Delete(context.Background(), admin(), "booking", "nope", validReason, audit.Origin{})
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_AlreadyDeletedConflicts(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(deletedBookingRow(time.Now().Add(-time.Hour)))
	mock.ExpectRollback()

	_, err := m.Delete(context.Background(), admin(), "booking", "b-1", validReason, audit.Origin{})
	require.Error(t, err)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_TenantManagerOtherStationDenied(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(activeBookingRow()) // station st-1
	mock.ExpectRollback()

	_, err := m.Delete(context.Background(), tenantManager("st-2"), "booking", "b-1", validReason, audit.Origin{})
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.CodeTenantMismatch, e.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_AuditFailureRollsBackMutation(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(activeBookingRow())
	mock.ExpectExec("UPDATE bookings SET deleted_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := m.Delete(context.Background(), admin(), "booking", "b-1", validReason, audit.Origin{})
	require.Error(t, err)
	// No commit was expected; the deferred rollback discards the mark.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_LostRaceReportsConflict(t *testing.T) {
	m, mock := newManager(t)

	// The guarded UPDATE touches zero rows: someone else won the race.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(activeBookingRow())
	mock.ExpectExec("UPDATE bookings SET deleted_at").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := m.Delete(context.Background(), admin(), "booking", "b-1", validReason, audit.Origin{})
	require.Error(t, err)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Restore
// ---------------------------------------------------------------------------

func TestRestore_WithinWindowSucceeds(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(deletedBookingRow(time.Now().Add(-48 * time.Hour)))
	expectWindowLookup(mock, nil)
	mock.ExpectExec("UPDATE bookings SET deleted_at = NULL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	row, err := m.Restore(context.Background(), admin(), "booking", "b-1", audit.Origin{})
	require.NoError(t, err)

	assert.False(t, row.Deleted())
	assert.Nil(t, row.DeleteReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_InclusiveBoundary(t *testing.T) {
	m, mock := newManager(t)

	// Deleted just under 30 days ago: still inside the window, restore runs.
	deletedAt := time.Now().Add(-30*24*time.Hour + time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(deletedBookingRow(deletedAt))
	expectWindowLookup(mock, nil)
	mock.ExpectExec("UPDATE bookings SET deleted_at = NULL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := m.Restore(context.Background(), admin(), "booking", "b-1", audit.Origin{})
	require.NoError(t, err)
}

func TestRestore_PastWindowExpired(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(deletedBookingRow(time.Now().Add(-31 * 24 * time.Hour)))
	expectWindowLookup(mock, nil)
	mock.ExpectRollback()

	_, err := m.Restore(context.Background(), admin(), "booking", "b-1", audit.Origin{})
	require.Error(t, err)
	assert.Equal(t, errs.KindWindowExpired, errs.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRestore_StationOverrideExtendsWindow(t *testing.T) {
	m, mock := newManager(t)

	// 31 days old, but the station configured a 90 day window.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(deletedBookingRow(time.Now().Add(-31 * 24 * time.Hour)))
	expectWindowLookup(mock, 90)
	mock.ExpectExec("UPDATE bookings SET deleted_at = NULL").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := m.Restore(context.Background(), admin(), "booking", "b-1", audit.Origin{})
	require.NoError(t, err)
}

func TestRestore_StationOverrideShortensWindow(t *testing.T) {
	m, mock := newManager(t)

	// 10 days old, but the station keeps deleted data only 7 days.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(deletedBookingRow(time.Now().Add(-10 * 24 * time.Hour)))
	expectWindowLookup(mock, 7)
	mock.ExpectRollback()

	_, err := m.Restore(context.Background(), admin(), "booking", "b-1", audit.Origin{})
	require.Error(t, err)
	assert.Equal(t, errs.KindWindowExpired, errs.KindOf(err))
}

func TestRestore_ActiveRowConflicts(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE (.+) FOR UPDATE").
		WithArgs("b-1").
		WillReturnRows(activeBookingRow())
	mock.ExpectRollback()

	_, err := m.Restore(context.Background(), admin(), "booking", "b-1", audit.Origin{})
	require.Error(t, err)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestGet_ReturnsSoftDeleteState(t *testing.T) {
	m, mock := newManager(t)

	deletedAt := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE").
		WithArgs("b-1").
		WillReturnRows(deletedBookingRow(deletedAt))

	row, err := m.Get(context.Background(), admin(), "booking", "b-1")
	require.NoError(t, err)

	assert.True(t, row.Deleted())
	require.NotNil(t, row.DeleteReason)
	assert.Equal(t, validReason, *row.DeleteReason)
}

func TestGet_TenantManagerScoped(t *testing.T) {
	m, mock := newManager(t)

	mock.ExpectQuery("SELECT (.+) FROM bookings r WHERE").
		WithArgs("b-1").
		WillReturnRows(activeBookingRow()) // station st-1

	_, err := m.Get(context.Background(), tenantManager("st-9"), "booking", "b-1")
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.CodeTenantMismatch, e.Code)
}
