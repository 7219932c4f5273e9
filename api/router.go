package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricewatch/api/handler"
	"github.com/use-agent/pricewatch/api/middleware"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/history"
	"github.com/use-agent/pricewatch/monitor"
	"github.com/use-agent/pricewatch/store"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit (if enabled)
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
// launch starts one background refresh cycle (wired by the caller so history
// recording and webhooks stay on the same path as timer-driven cycles).
func NewRouter(d *monitor.Driver, st store.RowStore, eng engine.Engine, hist *history.History, launch func(), cfg *config.Config, watching bool, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(eng, startTime))

	// Protected group. Rate limiting sits behind auth so the limiter
	// keys on the API key rather than the client IP when possible.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	if cfg.Server.RateRPS > 0 {
		protected.Use(middleware.RateLimit(cfg.Server.RateRPS, cfg.Server.RateBurst))
	}

	protected.GET("/status", handler.Status(d, hist, watching))
	protected.GET("/items", handler.Items(st, hist))
	protected.POST("/run", handler.Run(d, launch))

	return r
}
