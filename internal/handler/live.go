package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jonesrussell/viewtrace/internal/engine"
	"github.com/jonesrussell/viewtrace/internal/logger"
)

const (
	// pushInterval is how often the websocket pushes a heatmap frame.
	pushInterval = 100 * time.Millisecond
	// writeTimeout bounds a single websocket write.
	writeTimeout = 5 * time.Second
	// defaultEventLimit is the event count served when none is requested.
	defaultEventLimit = 100
)

// liveFrame is one websocket heatmap push.
type liveFrame struct {
	SessionID string `json:"session_id"`
	Enabled   bool   `json:"enabled"`
	Pages     any    `json:"pages"`
}

// LiveHandler serves the live heatmap and event log, by polling and over
// a websocket.
type LiveHandler struct {
	engine   *engine.Engine
	logger   logger.Logger
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a LiveHandler. The agent binds to localhost, so
// the upgrader accepts any origin.
func NewLiveHandler(eng *engine.Engine, log logger.Logger) *LiveHandler {
	return &LiveHandler{
		engine: eng,
		logger: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Heatmap returns the current heatmap snapshot.
func (h *LiveHandler) Heatmap(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session_id": h.engine.SessionID(),
		"enabled":    h.engine.Enabled(),
		"pages":      h.engine.HeatmapSnapshot(),
	})
}

// Events returns the most recent interaction events, newest last.
func (h *LiveHandler) Events(c *gin.Context) {
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": h.engine.SessionID(),
		"events":     h.engine.RecentEvents(limit),
	})
}

// Stream upgrades to a websocket and pushes heatmap frames at a fixed
// interval until the client disconnects. The snapshot debounce keeps the
// per-frame cost flat no matter how many clients are attached.
func (h *LiveHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	// Read pump: discard client messages, notice the close handshake.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			frame := liveFrame{
				SessionID: h.engine.SessionID(),
				Enabled:   h.engine.Enabled(),
				Pages:     h.engine.HeatmapSnapshot(),
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
