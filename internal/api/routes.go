package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/viewtrace/internal/config"
	"github.com/jonesrussell/viewtrace/internal/middleware"
)

// SetupRoutes configures all API routes. The ingest endpoints are rate
// limited per client; read endpoints are not.
func SetupRoutes(router *gin.Engine, h Handlers, rl config.RateLimitConfig, done <-chan struct{}) {
	router.GET("/health", h.Health.HealthCheck)

	window := time.Duration(rl.WindowSeconds) * time.Second

	ingest := router.Group("")
	ingest.Use(middleware.RateLimiter(rl.MaxEventsPerMinute, window, done))
	ingest.POST("/events", h.Events.HandleEvents)
	ingest.POST("/viewport", h.Events.HandleViewport)
	ingest.POST("/tracking", h.Events.HandleTracking)

	live := router.Group("/live")
	live.GET("/heatmap", h.Live.Heatmap)
	live.GET("/events", h.Live.Events)
	live.GET("/ws", h.Live.Stream)

	sessions := router.Group("/sessions")
	sessions.GET("", h.Sessions.List)
	sessions.GET("/:id", h.Sessions.Get)
	sessions.GET("/:id/export", h.Sessions.Export)
	sessions.DELETE("/:id", h.Sessions.Delete)

	router.POST("/session/close", h.Sessions.Close)
}
