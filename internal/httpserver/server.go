package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PratikDhanave/eventlog-export-service/internal/auth"
	"github.com/PratikDhanave/eventlog-export-service/internal/config"
	"github.com/PratikDhanave/eventlog-export-service/internal/handlers"
)

// Backend is what the admin API reads from. *export.Session implements it.
type Backend interface {
	handlers.SystemReader
	Ping(ctx context.Context) error
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready, /metrics
// Authenticated: /systems/:system/...
func NewRouter(cfg config.ServerConfig, b Backend) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the store is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := b.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Every system route needs a key that covers :system.
	systems := r.Group("/systems/:system")
	systems.Use(auth.APIKeyMiddleware(cfg.APIKeys), auth.RequireSystemAccess())

	handlers.RegisterSystemRoutes(systems, b)

	return r
}
