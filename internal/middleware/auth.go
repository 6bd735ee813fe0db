// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, and read-operation audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit → Auth → ReadAudit → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth to block brute-force attacks before any
// signature verification. Auth populates the actor identity that the
// authorization engine and audit recorder consume downstream. Per-resource
// authorization is NOT middleware: it lives in the soft-delete manager and
// audit query service, next to the row data it needs.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibachi-hq/platform-backend/internal/auth"
)

// ActorContextKey is the gin.Context key under which the authenticated
// *auth.Actor is stored.
const ActorContextKey = "actor"

// AuthMiddleware validates the Bearer identity token on every request and
// stores the resulting actor in the gin context. Token verification is
// entirely stateless: a signature and expiry check against the shared
// secret, with no database round-trip. Requests without a valid identity
// are rejected with 401 before reaching any handler.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		token = strings.TrimSpace(token)

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		actor, err := auth.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		c.Set(ActorContextKey, actor)
		c.Set("actor_id", actor.ID)

		c.Next()
	}
}

// ActorFromContext returns the authenticated actor set by AuthMiddleware, or
// nil when the request carried no valid identity.
func ActorFromContext(c *gin.Context) *auth.Actor {
	v, ok := c.Get(ActorContextKey)
	if !ok {
		return nil
	}
	actor, ok := v.(*auth.Actor)
	if !ok {
		return nil
	}
	return actor
}
