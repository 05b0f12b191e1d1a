package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/viewtrace/internal/engine"
	"github.com/jonesrussell/viewtrace/internal/logger"
	"github.com/jonesrussell/viewtrace/internal/session"
	"github.com/jonesrussell/viewtrace/internal/storage"
)

// Export formats accepted by the export endpoint.
const (
	formatJSON   = "json"
	formatReport = "report"
)

// SessionHandler serves stored sessions and the live one.
type SessionHandler struct {
	engine *engine.Engine
	store  *storage.Manager
	logger logger.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(eng *engine.Engine, store *storage.Manager, log logger.Logger) *SessionHandler {
	return &SessionHandler{engine: eng, store: store, logger: log}
}

// List returns stored session metadata plus the live session id.
func (h *SessionHandler) List(c *gin.Context) {
	metas, err := h.store.ListSessions()
	if err != nil {
		h.logger.Error("Failed to list sessions", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"live_session_id": h.engine.SessionID(),
		"sessions":        metas,
	})
}

// Get returns one full session record. The live session is served from
// memory; stored sessions from the backend.
func (h *SessionHandler) Get(c *gin.Context) {
	id := c.Param("id")

	if id == h.engine.SessionID() {
		c.JSON(http.StatusOK, h.engine.Snapshot())
		return
	}

	record, err := h.store.LoadSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load session",
			logger.String("session_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// Export renders a session as downloadable JSON or a plain-text report.
func (h *SessionHandler) Export(c *gin.Context) {
	id := c.Param("id")
	format := c.DefaultQuery("format", formatJSON)
	if format != formatJSON && format != formatReport {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown export format"})
		return
	}

	if id == h.engine.SessionID() {
		h.exportLive(c, format)
		return
	}

	record, err := h.store.LoadSession(id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load session for export",
			logger.String("session_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return
	}

	if format == formatReport {
		c.String(http.StatusOK, session.Report(record))
		return
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render export"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// exportLive renders the live session without touching the backend.
func (h *SessionHandler) exportLive(c *gin.Context, format string) {
	if format == formatReport {
		c.String(http.StatusOK, h.engine.ExportReport())
		return
	}
	data, err := h.engine.ExportJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render export"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// Delete removes a stored session. The live session cannot be deleted;
// close it first.
func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if id == h.engine.SessionID() {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot delete the live session"})
		return
	}

	if _, err := h.store.LoadSession(id); errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	if err := h.store.DeleteSession(id); err != nil {
		h.logger.Error("Failed to delete session",
			logger.String("session_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Close ends the live session, persists it, and starts a fresh one.
func (h *SessionHandler) Close(c *gin.Context) {
	record := h.engine.CloseSession(time.Now().UnixMilli())

	c.JSON(http.StatusOK, gin.H{
		"closed":          record.Metadata(),
		"live_session_id": h.engine.SessionID(),
	})
}
