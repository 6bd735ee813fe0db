package api

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/hibachi-hq/platform-backend/internal/auth"
	"github.com/hibachi-hq/platform-backend/internal/config"
)

func TestMain(m *testing.M) {
	os.Setenv("HIB_JWT_SECRET", "test-jwt-secret-that-is-32-chars!!")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// ----------------------------------------------------------------------------
// Harness
// ----------------------------------------------------------------------------

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Security.CORS.AllowedOrigins = []string{"https://admin.hibachi-hq.com"}
	cfg.Security.RateLimiting.Enabled = false
	cfg.Retention.RestoreWindowDays = 30
	cfg.Retention.PurgeIntervalHours = 6
	cfg.Retention.PurgeBatchSize = 100
	return cfg
}

func newTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}

	router, bg := NewRouter(testConfig(), db)
	t.Cleanup(func() {
		bg.Shutdown()
		db.Close()
	})
	return router, mock, db
}

func bearerToken(t *testing.T, actor *auth.Actor) string {
	t.Helper()
	token, err := auth.GenerateToken(actor, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	return "Bearer " + token
}

// ----------------------------------------------------------------------------
// Operational probes
// ----------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
}

func TestReadyEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
}

func TestVersionEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

// ----------------------------------------------------------------------------
// Authentication gate
// ----------------------------------------------------------------------------

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/booking/bk-1"},
		{http.MethodDelete, "/api/v1/booking/bk-1"},
		{http.MethodPost, "/api/v1/booking/bk-1/restore"},
		{http.MethodGet, "/api/v1/audit-logs"},
		{http.MethodGet, "/api/v1/audit-logs/al-1"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestAuthenticatedRequestReachesHandler(t *testing.T) {
	router, mock, _ := newTestRouter(t)

	mock.ExpectQuery(`FROM bookings r WHERE r.id::text = \$1`).
		WithArgs("bk-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "station_id", "label", "deleted_at", "deleted_by", "delete_reason", "row_to_json",
		}).AddRow("bk-1", "st-1", "Tanaka Party", nil, nil, nil, []byte(`{"id":"bk-1"}`)))

	actor := &auth.Actor{ID: "user-1", Role: auth.RoleAdmin, DisplayName: "Aki", Email: "aki@hibachi-hq.com"}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/booking/bk-1", nil)
	req.Header.Set("Authorization", bearerToken(t, actor))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v2/nothing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ----------------------------------------------------------------------------
// CORS
// ----------------------------------------------------------------------------

func TestCORSPreflightAllowedOrigin(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/booking/bk-1", nil)
	req.Header.Set("Origin", "https://admin.hibachi-hq.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.hibachi-hq.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/booking/bk-1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin received Access-Control-Allow-Origin = %q", got)
	}
}

// ----------------------------------------------------------------------------
// Security headers
// ----------------------------------------------------------------------------

func TestSecurityHeadersApplied(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got == "" {
		t.Error("X-Frame-Options header missing")
	}
}
