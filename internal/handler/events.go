// Package handler exposes the engine over the local HTTP API the viewer
// talks to.
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/viewtrace/internal/domain"
	"github.com/jonesrussell/viewtrace/internal/engine"
	"github.com/jonesrussell/viewtrace/internal/geometry"
	"github.com/jonesrussell/viewtrace/internal/logger"
)

// maxBatchSize caps the number of events accepted in one ingest request.
const maxBatchSize = 500

// eventBatch is the wire format of an ingest request.
type eventBatch struct {
	Events []domain.InteractionEvent `json:"events"`
}

// trackingRequest is the wire format of a tracking toggle.
type trackingRequest struct {
	Enabled *bool `json:"enabled"`
}

// EventHandler feeds viewer-reported events and state into the engine.
type EventHandler struct {
	engine *engine.Engine
	logger logger.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(eng *engine.Engine, log logger.Logger) *EventHandler {
	return &EventHandler{engine: eng, logger: log}
}

// HandleEvents ingests a batch of raw interaction events. Events with an
// unknown type or a missing timestamp are rejected individually; the
// rest of the batch is still processed.
func (h *EventHandler) HandleEvents(c *gin.Context) {
	var batch eventBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event batch"})
		return
	}
	if len(batch.Events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty event batch"})
		return
	}
	if len(batch.Events) > maxBatchSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "event batch too large"})
		return
	}

	accepted, rejected := 0, 0
	for _, ev := range batch.Events {
		if ev.TimestampMs <= 0 {
			ev.TimestampMs = time.Now().UnixMilli()
		}
		if err := h.engine.Ingest(ev); err != nil {
			rejected++
			continue
		}
		accepted++
	}

	if rejected > 0 {
		h.logger.Debug("Event batch partially rejected",
			logger.Int("accepted", accepted),
			logger.Int("rejected", rejected),
		)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"accepted": accepted,
		"rejected": rejected,
	})
}

// HandleViewport installs the viewer-reported mapping geometry.
func (h *EventHandler) HandleViewport(c *gin.Context) {
	var v geometry.Viewport
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed viewport"})
		return
	}

	if err := h.engine.SetViewport(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleTracking turns tracking on or off.
func (h *EventHandler) HandleTracking(c *gin.Context) {
	var req trackingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing enabled flag"})
		return
	}

	h.engine.SetEnabled(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}
