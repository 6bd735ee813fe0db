// Package api wires together all HTTP routes for the platform admin backend.
//
// Route grouping philosophy:
//   - Operational probes (/health, /ready, /version) are unauthenticated so
//     load balancers and Kubernetes can reach them without credentials.
//   - Everything under /api/v1/ requires a valid identity. Role and tenant
//     authorization happens per-resource inside the soft-delete manager and
//     audit query service, never in routing.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/hibachi-hq/platform-backend/internal/api/admin"
	"github.com/hibachi-hq/platform-backend/internal/audit"
	"github.com/hibachi-hq/platform-backend/internal/authz"
	"github.com/hibachi-hq/platform-backend/internal/config"
	"github.com/hibachi-hq/platform-backend/internal/db/repositories"
	"github.com/hibachi-hq/platform-backend/internal/jobs"
	"github.com/hibachi-hq/platform-backend/internal/middleware"
	"github.com/hibachi-hq/platform-backend/internal/safego"
	"github.com/hibachi-hq/platform-backend/internal/softdelete"
)

// BackgroundServices holds references to background jobs and resources that
// must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() when the process receives a termination
// signal.
type BackgroundServices struct {
	purger      *jobs.Purger
	rateLimiter middleware.Limiter
	shipper     audit.Shipper
}

// Shutdown stops all background goroutines and flushes the audit shipper. It
// should be called after the HTTP server has been shut down so that in-flight
// requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.purger != nil {
		bg.purger.Stop()
	}
	if bg.rateLimiter != nil {
		bg.rateLimiter.Stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Warn("closing audit shipper", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// buildShipper translates the audit config section into the shipper stack.
// Returns nil (ship nothing) when no shipper is enabled.
func buildShipper(cfgs []config.AuditShipperConfig) (audit.Shipper, error) {
	if len(cfgs) == 0 {
		return nil, nil
	}

	converted := make([]audit.ShipperConfig, 0, len(cfgs))
	for _, sc := range cfgs {
		out := audit.ShipperConfig{Enabled: sc.Enabled, Type: sc.Type}
		if sc.Webhook != nil {
			out.Webhook = &audit.WebhookConfig{
				URL:           sc.Webhook.URL,
				Headers:       sc.Webhook.Headers,
				Timeout:       time.Duration(sc.Webhook.TimeoutSecs) * time.Second,
				BatchSize:     sc.Webhook.BatchSize,
				FlushInterval: time.Duration(sc.Webhook.FlushInterval) * time.Second,
			}
		}
		if sc.File != nil {
			out.File = &audit.FileConfig{
				Path:       sc.File.Path,
				MaxSizeMB:  sc.File.MaxSizeMB,
				MaxBackups: sc.File.MaxBackups,
			}
		}
		converted = append(converted, out)
	}

	return audit.NewMultiShipper(converted)
}

// NewRouter creates and configures the Gin router with all routes,
// middleware, and background jobs.
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Repositories. The station repository rides sqlx for struct scanning;
	// the others use database/sql directly so audit inserts can share the
	// caller's transaction.
	sqlxDB := sqlx.NewDb(db, "postgres")
	auditRepo := repositories.NewAuditRepository(db)
	softDeleteStore := repositories.NewSoftDeleteStore(db)
	stationRepo := repositories.NewStationRepository(sqlxDB)

	// Audit pipeline: recorder writes the DB rows, the shipper mirrors
	// committed entries to external destinations.
	shipper, err := buildShipper(cfg.Audit.Shippers)
	if err != nil {
		log.Fatalf("Failed to initialize audit shippers: %v", err)
	}
	recorder := audit.NewRecorder(auditRepo, shipper)

	// Authorization engine, the query service and soft-delete manager built
	// on it.
	engine := authz.NewEngine()
	queryService := audit.NewQueryService(auditRepo, engine)
	manager := softdelete.NewManager(
		db, softDeleteStore, stationRepo, engine, recorder,
		cfg.Retention.RestoreWindowDays,
	)

	// Retention purge job.
	purger := jobs.NewPurger(
		db, softDeleteStore, stationRepo, recorder,
		cfg.Retention.RestoreWindowDays,
		cfg.Retention.PurgeIntervalHours,
		cfg.Retention.PurgeBatchSize,
	)
	safego.Go(func() { purger.Start(context.Background()) })
	slog.Info("retention purge job started",
		"interval_hours", cfg.Retention.PurgeIntervalHours,
		"window_days", cfg.Retention.RestoreWindowDays)

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Operational probes.
	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db))
	router.GET("/version", versionHandler())

	// Handlers.
	resourceHandlers := admin.NewResourceHandlers(manager)
	auditHandlers := admin.NewAuditHandlers(queryService)

	// Rate limiter backend per config.
	var rateLimiter middleware.Limiter
	apiV1 := router.Group("/api/v1")
	if cfg.Security.RateLimiting.Enabled {
		rateLimiter, err = middleware.NewLimiterFromConfig(cfg.Security.RateLimiting)
		if err != nil {
			log.Fatalf("Failed to initialize rate limiter: %v", err)
		}
		apiV1.Use(middleware.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimiting.RequestsPerMinute))
	}

	apiV1.Use(middleware.AuthMiddleware())
	apiV1.Use(middleware.ReadAuditMiddleware(recorder, db, &cfg.Audit))
	{
		// Audit trail query surface. Registered before the resource wildcard
		// so the static "audit-logs" segment wins.
		apiV1.GET("/audit-logs", auditHandlers.ListAuditLogs)
		apiV1.GET("/audit-logs/:id", auditHandlers.GetAuditLog)

		// Soft-deletable resource lifecycle.
		apiV1.GET("/:resource_type/:id", resourceHandlers.GetResource)
		apiV1.DELETE("/:resource_type/:id", resourceHandlers.DeleteResource)
		apiV1.POST("/:resource_type/:id/restore", resourceHandlers.RestoreResource)
	}

	bg := &BackgroundServices{
		purger:      purger,
		rateLimiter: rateLimiter,
		shipper:     shipper,
	}

	return router, bg
}

// healthCheckHandler returns the liveness status of the service.
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service. The database
// is the only hard dependency; audit shippers are best-effort and never gate
// readiness.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version.
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured request logging via slog.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS for the admin frontend.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
