// Package auth - jwt.go verifies identity tokens issued by the external
// identity provider and extracts the actor claims this service consumes.
// The platform's login flow (OAuth, sessions, token issuance) lives in a
// separate collaborator; this service only checks the shared-secret signature
// and expiry, then trusts the embedded {id, role, bound station} claim.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// jwtSecret holds the validated identity-token secret
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// Claims is the identity-token claims structure shared with the identity
// collaborator. StationID is present only for TENANT_MANAGER tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	StationID string `json:"station_id,omitempty"`
	jwt.RegisteredClaims
}

// isDevMode checks if we're in development mode
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	ginMode := os.Getenv("GIN_MODE")
	return devMode == "true" || devMode == "1" || ginMode == "debug"
}

// generateRandomSecret creates a cryptographically secure random secret
func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a less secure but functional secret
		return fmt.Sprintf("dev-fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// ValidateJWTSecret checks that the identity-token secret is configured.
// In production this fails if HIB_JWT_SECRET is not set. In dev mode it
// generates a random secret and logs a warning. Call at startup.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv("HIB_JWT_SECRET")

		if secret == "" {
			if isDevMode() {
				jwtSecret = generateRandomSecret()
				log.Printf("WARNING: HIB_JWT_SECRET not set. Using auto-generated secret for development.")
				log.Printf("WARNING: Sessions will not survive restarts. Set HIB_JWT_SECRET for persistent sessions.")
			} else {
				jwtSecretErr = errors.New("SECURITY ERROR: HIB_JWT_SECRET environment variable is required in production. " +
					"Generate a secure secret with: openssl rand -hex 32")
			}
			return
		}

		if len(secret) < 32 {
			log.Printf("WARNING: HIB_JWT_SECRET is shorter than recommended 32 characters. Consider using a longer secret.")
		}

		jwtSecret = secret
	})

	return jwtSecretErr
}

// GetJWTSecret retrieves the validated secret. Panics if ValidateJWTSecret
// has not been called successfully.
func GetJWTSecret() string {
	if jwtSecret == "" {
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

// GenerateToken mints an identity token. The production issuer is the external
// identity collaborator; this function exists for the dev login path and tests.
func GenerateToken(actor *Actor, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = 1 * time.Hour
	}
	if err := actor.Validate(); err != nil {
		return "", err
	}

	claims := &Claims{
		UserID: actor.ID,
		Role:   string(actor.Role),
		Name:   actor.DisplayName,
		Email:  actor.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "hibachi-platform",
			Subject:   actor.ID,
		},
	}
	if actor.BoundStationID != nil {
		claims.StationID = *actor.BoundStationID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(GetJWTSecret()))
}

// ValidateToken verifies a token's signature and expiry and returns the actor
// it identifies. The role and station-binding invariants are re-checked here
// so that a malformed claim from a misconfigured issuer is rejected rather
// than flowing into the authorization engine.
func ValidateToken(tokenString string) (*Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(GetJWTSecret()), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("invalid role claim: %w", err)
	}

	actor := &Actor{
		ID:          claims.UserID,
		Role:        role,
		DisplayName: claims.Name,
		Email:       claims.Email,
	}
	if claims.StationID != "" {
		sid := claims.StationID
		actor.BoundStationID = &sid
	}
	if err := actor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid identity claim: %w", err)
	}
	return actor, nil
}
