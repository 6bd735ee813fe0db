package auth

import (
	"os"
	"sync"
	"testing"
	"time"
)

// resetJWTSecret resets the package-level sync.Once so tests can set a fresh secret.
// This is only safe to call from test code.
func resetJWTSecret() {
	jwtSecret = ""
	jwtSecretOnce = sync.Once{}
	jwtSecretErr = nil
}

func TestMain(m *testing.M) {
	// Set a known test secret before any test runs.
	// The sync.Once will capture this value on first call to ValidateJWTSecret.
	os.Setenv("HIB_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")
	os.Exit(m.Run())
}

func TestValidateJWTSecret(t *testing.T) {
	t.Run("valid secret from env", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("HIB_JWT_SECRET", "exactly-32-char-secret-for-test!!")
		if err := ValidateJWTSecret(); err != nil {
			t.Errorf("ValidateJWTSecret() unexpected error: %v", err)
		}
	})

	t.Run("production mode requires secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("HIB_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "")
		t.Setenv("GIN_MODE", "release")
		if err := ValidateJWTSecret(); err == nil {
			t.Error("ValidateJWTSecret() expected error in production mode without secret, got nil")
		}
	})

	t.Run("dev mode generates random secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("HIB_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "true")
		if err := ValidateJWTSecret(); err != nil {
			t.Errorf("ValidateJWTSecret() unexpected error in dev mode: %v", err)
		}
		if GetJWTSecret() == "" {
			t.Error("GetJWTSecret() returned empty string after dev mode init")
		}
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	resetJWTSecret()
	t.Setenv("HIB_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")

	t.Run("round trip for station-unbound role", func(t *testing.T) {
		actor := &Actor{ID: "user-123", Role: RoleAdmin, DisplayName: "Alice", Email: "alice@example.com"}

		token, err := GenerateToken(actor, time.Hour)
		if err != nil {
			t.Fatalf("GenerateToken() error: %v", err)
		}

		got, err := ValidateToken(token)
		if err != nil {
			t.Fatalf("ValidateToken() error: %v", err)
		}
		if got.ID != actor.ID || got.Role != RoleAdmin {
			t.Errorf("ValidateToken() = %+v, want id=%s role=%s", got, actor.ID, RoleAdmin)
		}
		if got.BoundStationID != nil {
			t.Errorf("ADMIN token must not carry a station binding, got %v", *got.BoundStationID)
		}
	})

	t.Run("round trip for tenant manager", func(t *testing.T) {
		station := "S1"
		actor := &Actor{ID: "user-456", Role: RoleTenantManager, BoundStationID: &station}

		token, err := GenerateToken(actor, time.Hour)
		if err != nil {
			t.Fatalf("GenerateToken() error: %v", err)
		}

		got, err := ValidateToken(token)
		if err != nil {
			t.Fatalf("ValidateToken() error: %v", err)
		}
		if got.BoundStationID == nil || *got.BoundStationID != "S1" {
			t.Errorf("bound station = %v, want S1", got.BoundStationID)
		}
	})

	t.Run("expired token rejected", func(t *testing.T) {
		actor := &Actor{ID: "user-789", Role: RoleSupport}
		token, err := GenerateToken(actor, -time.Minute)
		if err != nil {
			t.Fatalf("GenerateToken() error: %v", err)
		}
		if _, err := ValidateToken(token); err == nil {
			t.Error("ValidateToken() accepted an expired token")
		}
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		if _, err := ValidateToken("not.a.token"); err == nil {
			t.Error("ValidateToken() accepted a malformed token")
		}
	})

	t.Run("tenant manager without station claim rejected", func(t *testing.T) {
		// Mint via GenerateToken refuses this, so the invariant holds on issue
		// as well as verify.
		actor := &Actor{ID: "user-000", Role: RoleTenantManager}
		if _, err := GenerateToken(actor, time.Hour); err == nil {
			t.Error("GenerateToken() accepted TENANT_MANAGER without station")
		}
	})
}
