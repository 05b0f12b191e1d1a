package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/viewtrace/internal/engine"
	"github.com/jonesrussell/viewtrace/internal/storage"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	version string
	engine  *engine.Engine
	store   *storage.Manager
}

// NewHealthHandler creates a HealthHandler reporting the given version.
func NewHealthHandler(version string, eng *engine.Engine, store *storage.Manager) *HealthHandler {
	return &HealthHandler{version: version, engine: eng, store: store}
}

// HealthCheck returns service health status along with the live session
// and storage state.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	usage, err := h.store.Usage()
	persistence := gin.H{"enabled": h.store.Enabled()}
	if err == nil && h.store.Enabled() {
		persistence["records"] = usage.Records
		persistence["bytes"] = usage.Bytes
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"version":     h.version,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"session_id":  h.engine.SessionID(),
		"tracking":    h.engine.Enabled(),
		"persistence": persistence,
	})
}
