// Package domain defines the shared data model for the interaction
// analytics engine: document-space samples, interaction events, and the
// durable session records built from them.
package domain

// EventType identifies a kind of viewer interaction.
type EventType string

const (
	EventMove     EventType = "move"
	EventClick    EventType = "click"
	EventScroll   EventType = "scroll"
	EventZoom     EventType = "zoom"
	EventRotate   EventType = "rotate"
	EventNavigate EventType = "navigate"
	EventSnip     EventType = "snip"
)

// Valid reports whether t is one of the known event types. Move events
// are valid input but are counted rather than logged.
func (t EventType) Valid() bool {
	switch t {
	case EventMove, EventClick, EventScroll, EventZoom, EventRotate, EventNavigate, EventSnip:
		return true
	default:
		return false
	}
}

// DocumentPoint is a single pointer sample in document space, independent
// of the current zoom, rotation, and display size. It is an immutable value.
type DocumentPoint struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// InteractionEvent is one chronological entry in the interaction log.
// Events are append-only and kept in arrival order.
type InteractionEvent struct {
	Type        EventType      `json:"type"`
	TimestampMs int64          `json:"timestamp_ms"`
	PageNumber  int            `json:"page_number"`
	Details     map[string]any `json:"details,omitempty"`
}

// PageView records one continuous interval of viewing a single page.
// A session has at most one open PageView (EndTimeMs == 0) at a time.
type PageView struct {
	PageNumber      int   `json:"page_number"`
	StartTimeMs     int64 `json:"start_time_ms"`
	EndTimeMs       int64 `json:"end_time_ms,omitempty"`
	TotalTimeMs     int64 `json:"total_time_ms"`
	MouseMovements  int   `json:"mouse_movements"`
	ScrollEvents    int   `json:"scroll_events"`
	ZoomChanges     int   `json:"zoom_changes"`
	RotationChanges int   `json:"rotation_changes"`
}

// SessionRecord is the unit of persistence: one per viewing session.
// The session ID is generated once and never reused.
type SessionRecord struct {
	SessionID       string             `json:"session_id"`
	StartTimeMs     int64              `json:"start_time_ms"`
	EndTimeMs       int64              `json:"end_time_ms,omitempty"`
	TotalDurationMs int64              `json:"total_duration_ms"`
	TotalPages      int                `json:"total_pages"`
	PageViews       []PageView         `json:"page_views"`
	Interactions    []InteractionEvent `json:"interactions"`
	HeatmapSummary  *HeatmapSummary    `json:"heatmap_summary,omitempty"`
}

// SessionMetadata is the lightweight record persisted alongside each
// session so listings never deserialize full session payloads.
type SessionMetadata struct {
	SessionID   string `json:"session_id"`
	StartTimeMs int64  `json:"start_time_ms"`
	EndTimeMs   int64  `json:"end_time_ms,omitempty"`
	TotalPages  int    `json:"total_pages"`
	EventCount  int    `json:"event_count"`
}

// HeatmapSummary is the derived, zoom-independent aggregate persisted in
// place of raw grids.
type HeatmapSummary struct {
	Pages []PageSummary `json:"pages"`
}

// PageSummary aggregates one page's grid at snapshot time.
type PageSummary struct {
	PageNumber    int     `json:"page_number"`
	CellCount     int     `json:"cell_count"`
	PeakIntensity float64 `json:"peak_intensity"`
	TotalWeight   float64 `json:"total_weight"`
}

// Metadata derives the listing record from a full session record.
func (r *SessionRecord) Metadata() SessionMetadata {
	return SessionMetadata{
		SessionID:   r.SessionID,
		StartTimeMs: r.StartTimeMs,
		EndTimeMs:   r.EndTimeMs,
		TotalPages:  r.TotalPages,
		EventCount:  len(r.Interactions),
	}
}
