// Package admin implements the authenticated admin-panel endpoints: resource
// delete/restore/view and the audit trail query surface. Handlers are thin:
// they translate HTTP to the soft-delete manager and audit query service, and
// translate the error taxonomy back to status codes. No authorization logic
// lives here.
package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hibachi-hq/platform-backend/internal/audit"
	"github.com/hibachi-hq/platform-backend/internal/auth"
	"github.com/hibachi-hq/platform-backend/internal/errs"
	"github.com/hibachi-hq/platform-backend/internal/middleware"
)

// errorBody is the structured error payload. Kind distinguishes the failure
// classes programmatically; Code carries the authorization deny reason when
// present (INSUFFICIENT_ROLE, TENANT_MISMATCH).
type errorBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// writeError maps a taxonomy error onto its HTTP status and structured body.
// Unclassified errors become opaque 500s so internal failure detail never
// leaks to clients.
func writeError(c *gin.Context, err error) {
	status := errs.HTTPStatus(err)

	var e *errs.Error
	if !errors.As(err, &e) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": errorBody{Kind: "INTERNAL", Message: "internal server error"},
		})
		return
	}

	c.JSON(status, gin.H{
		"error": errorBody{
			Kind:    string(e.Kind),
			Code:    e.Code,
			Message: e.Message,
		},
	})
}

// unauthorized is the response for requests that somehow reach a handler
// without an actor in context (auth middleware misconfiguration).
func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": errorBody{Kind: "AUTHORIZATION", Message: "authentication required"},
	})
}

// originFrom captures the request origin recorded on audit entries.
func originFrom(c *gin.Context) audit.Origin {
	return audit.Origin{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// actorOrAbort returns the authenticated actor or writes a 401 and returns
// nil.
func actorOrAbort(c *gin.Context) *auth.Actor {
	actor := middleware.ActorFromContext(c)
	if actor == nil {
		unauthorized(c)
		return nil
	}
	return actor
}
