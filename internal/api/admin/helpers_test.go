package admin

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/hibachi-hq/platform-backend/internal/audit"
	"github.com/hibachi-hq/platform-backend/internal/auth"
	"github.com/hibachi-hq/platform-backend/internal/authz"
	"github.com/hibachi-hq/platform-backend/internal/db/repositories"
	"github.com/hibachi-hq/platform-backend/internal/middleware"
	"github.com/hibachi-hq/platform-backend/internal/softdelete"
)

// ----------------------------------------------------------------------------
// Test harness
// ----------------------------------------------------------------------------

// testEnv wires the handlers onto a gin engine the way the router does, with
// a sqlmock database underneath and a fixed actor injected in place of the
// auth middleware.
type testEnv struct {
	db     *sql.DB
	mock   sqlmock.Sqlmock
	router *gin.Engine
}

func newTestEnv(t *testing.T, actor *auth.Actor) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	auditRepo := repositories.NewAuditRepository(db)
	store := repositories.NewSoftDeleteStore(db)
	stations := repositories.NewStationRepository(sqlx.NewDb(db, "postgres"))
	recorder := audit.NewRecorder(auditRepo, nil)
	engine := authz.NewEngine()
	manager := softdelete.NewManager(db, store, stations, engine, recorder, 30)
	queryService := audit.NewQueryService(auditRepo, engine)

	resourceHandlers := NewResourceHandlers(manager)
	auditHandlers := NewAuditHandlers(queryService)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if actor != nil {
			c.Set(middleware.ActorContextKey, actor)
		}
		c.Next()
	})

	v1 := router.Group("/api/v1")
	v1.GET("/audit-logs", auditHandlers.ListAuditLogs)
	v1.GET("/audit-logs/:id", auditHandlers.GetAuditLog)
	v1.GET("/:resource_type/:id", resourceHandlers.GetResource)
	v1.DELETE("/:resource_type/:id", resourceHandlers.DeleteResource)
	v1.POST("/:resource_type/:id/restore", resourceHandlers.RestoreResource)

	return &testEnv{db: db, mock: mock, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) expectationsMet(t *testing.T) {
	t.Helper()
	if err := e.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

// decodeBody unmarshals a JSON response body into a generic map.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding response body %q: %v", w.Body.String(), err)
	}
	return m
}

// errorField digs the structured error object out of a response.
func errorField(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decodeBody(t, w)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no structured error: %v", body)
	}
	return errObj
}

// ----------------------------------------------------------------------------
// Fixture actors
// ----------------------------------------------------------------------------

func adminActor() *auth.Actor {
	return &auth.Actor{
		ID:          "user-admin",
		Role:        auth.RoleAdmin,
		DisplayName: "Aki Admin",
		Email:       "aki@hibachi-hq.com",
	}
}

func supportActor() *auth.Actor {
	return &auth.Actor{
		ID:          "user-support",
		Role:        auth.RoleSupport,
		DisplayName: "Sam Support",
		Email:       "sam@hibachi-hq.com",
	}
}

func tenantManagerActor(stationID string) *auth.Actor {
	return &auth.Actor{
		ID:             "user-tm",
		Role:           auth.RoleTenantManager,
		DisplayName:    "Tomo Manager",
		Email:          "tomo@hibachi-hq.com",
		BoundStationID: &stationID,
	}
}

// validReason satisfies the 10-to-500 character requirement.
const validReason = "customer requested removal of their booking under privacy policy"

// ----------------------------------------------------------------------------
// Row builders
// ----------------------------------------------------------------------------

var resourceColumns = []string{
	"id", "station_id", "label", "deleted_at", "deleted_by", "delete_reason", "row_to_json",
}

func activeBookingRow(id, stationID, label string) *sqlmock.Rows {
	snapshot := `{"id":"` + id + `","station_id":"` + stationID + `","customer_name":"` + label + `"}`
	return sqlmock.NewRows(resourceColumns).
		AddRow(id, stationID, label, nil, nil, nil, []byte(snapshot))
}

func deletedBookingRow(id, stationID, label string, deletedAt interface{}, deletedBy, reason string) *sqlmock.Rows {
	snapshot := `{"id":"` + id + `","station_id":"` + stationID + `","customer_name":"` + label + `"}`
	return sqlmock.NewRows(resourceColumns).
		AddRow(id, stationID, label, deletedAt, deletedBy, reason, []byte(snapshot))
}

func stationWindowRow(days interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"restore_window_days"}).AddRow(days)
}

// lockedSelect matches the FOR UPDATE read the manager issues inside its
// transaction.
const lockedBookingSelect = `SELECT (.+) FROM bookings r WHERE r.id::text = \$1 FOR UPDATE`

// plainBookingSelect matches the unlocked read used by GET.
const plainBookingSelect = `SELECT (.+) FROM bookings r WHERE r.id::text = \$1`

const stationWindowSelect = `SELECT restore_window_days FROM stations WHERE id = \$1`

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, want, w.Body.String())
	}
}
