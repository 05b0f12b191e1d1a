// Package engine wires the interaction pipeline together: raw viewer
// events are conditioned, mapped into document space, accumulated into
// the heatmap, counted on the session record, and persisted on a
// schedule. All state transitions happen through explicit methods; the
// engine never polls the viewer for anything.
package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/viewtrace/internal/config"
	"github.com/jonesrussell/viewtrace/internal/conditioner"
	"github.com/jonesrussell/viewtrace/internal/domain"
	"github.com/jonesrussell/viewtrace/internal/eventlog"
	"github.com/jonesrussell/viewtrace/internal/geometry"
	"github.com/jonesrussell/viewtrace/internal/heatmap"
	"github.com/jonesrussell/viewtrace/internal/logger"
	"github.com/jonesrussell/viewtrace/internal/session"
	"github.com/jonesrussell/viewtrace/internal/storage"
)

// ErrInvalidViewport is returned when the viewer reports unusable
// geometry; the previous viewport stays in effect.
var ErrInvalidViewport = fmt.Errorf("invalid viewport geometry")

// Engine owns one live session at a time and the pipeline feeding it.
// High-rate kinds (move, scroll) pass through the conditioner; discrete
// kinds are always recorded. When tracking is disabled events are
// dropped at the door and nothing downstream observes them.
type Engine struct {
	cfg *config.Config
	log logger.Logger

	cond  *conditioner.Conditioner
	store *storage.Manager

	mu       sync.Mutex
	enabled  bool
	viewport geometry.Viewport
	page     int
	rotation int
	heat     *heatmap.Accumulator
	events   *eventlog.Log
	tracker  *session.Tracker

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an Engine with a fresh session starting now. Tracking
// starts enabled; persistence goes through store.
func New(cfg *config.Config, log logger.Logger, store *storage.Manager) *Engine {
	e := &Engine{
		cfg: cfg,
		log: log,
		cond: conditioner.New(conditioner.Options{
			ThrottleInterval:   cfg.Conditioner.ThrottleInterval,
			SampleRate:         cfg.Conditioner.SampleRate,
			SampleFloor:        cfg.Conditioner.SampleFloor,
			MaxEventsPerSecond: cfg.Conditioner.MaxEventsPerSecond,
			RateWindow:         cfg.Conditioner.RateWindow,
		}),
		store:   store,
		enabled: true,
		page:    1,
		stop:    make(chan struct{}),
	}
	e.resetSessionLocked(time.Now().UnixMilli())
	return e
}

// Start launches the background decay, snapshot, and retention loops.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.run()
}

// Close ends the live session, persists it with a forced flush, and
// stops the background loops. The storage manager itself is left for
// the caller to stop.
func (e *Engine) Close() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
	e.wg.Wait()

	e.CloseSession(time.Now().UnixMilli())
}

// SetEnabled turns tracking on or off. Disabling does not end the
// session; events are simply dropped until tracking resumes.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	changed := e.enabled != enabled
	e.enabled = enabled
	e.mu.Unlock()

	if changed {
		e.log.Info("Tracking state changed", logger.Bool("enabled", enabled))
	}
}

// Enabled reports whether tracking is active.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetViewport installs the viewer-reported geometry used for all
// subsequent coordinate mapping. Invalid geometry is rejected and the
// previous viewport stays in effect.
func (e *Engine) SetViewport(v geometry.Viewport) error {
	if !v.Valid() {
		return ErrInvalidViewport
	}

	e.mu.Lock()
	e.viewport = v
	e.heat.SetZoom(v.Zoom)
	e.mu.Unlock()
	return nil
}

// Viewport returns the current mapping geometry.
func (e *Engine) Viewport() geometry.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewport
}

// SessionID returns the live session's identifier.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.ID()
}

// PointerMove feeds one raw pointer sample through the conditioner and,
// if admitted, into the heatmap and the movement counter. Samples
// outside the page surface are dropped after conditioning.
func (e *Engine) PointerMove(screenX, screenY float64, timestampMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return
	}
	if !e.cond.Allow(domain.EventMove, timestampMs) {
		return
	}

	p, ok := e.viewport.ToDocument(screenX, screenY, timestampMs)
	if !ok {
		return
	}

	e.heat.Add(e.page, p)
	e.tracker.CountMovement()
}

// Click records a click interaction and adds its position to the
// heatmap. Clicks are discrete and bypass the sampler.
func (e *Engine) Click(screenX, screenY float64, timestampMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return
	}

	details := map[string]any{"screen_x": screenX, "screen_y": screenY}
	if p, ok := e.viewport.ToDocument(screenX, screenY, timestampMs); ok {
		e.heat.Add(e.page, p)
		details["x"] = p.X
		details["y"] = p.Y
	}

	e.tracker.Record(domain.InteractionEvent{
		Type:        domain.EventClick,
		TimestampMs: timestampMs,
		PageNumber:  e.page,
		Details:     details,
	})
}

// Scroll records a scroll interaction. Scrolls are high-rate and pass
// through the conditioner.
func (e *Engine) Scroll(deltaY float64, timestampMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return
	}
	if !e.cond.Allow(domain.EventScroll, timestampMs) {
		return
	}

	e.tracker.Record(domain.InteractionEvent{
		Type:        domain.EventScroll,
		TimestampMs: timestampMs,
		PageNumber:  e.page,
		Details:     map[string]any{"delta_y": deltaY},
	})
}

// SetZoom records a zoom change and rescales the heatmap grid so
// accumulated density stays comparable across zoom levels.
func (e *Engine) SetZoom(zoom float64, timestampMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled || zoom <= 0 {
		return
	}

	e.viewport.Zoom = zoom
	e.heat.SetZoom(zoom)
	e.tracker.Record(domain.InteractionEvent{
		Type:        domain.EventZoom,
		TimestampMs: timestampMs,
		PageNumber:  e.page,
		Details:     map[string]any{"zoom": zoom},
	})
}

// SetRotation records a rotation change in degrees.
func (e *Engine) SetRotation(degrees int, timestampMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return
	}

	e.rotation = degrees
	e.tracker.Record(domain.InteractionEvent{
		Type:        domain.EventRotate,
		TimestampMs: timestampMs,
		PageNumber:  e.page,
		Details:     map[string]any{"degrees": degrees},
	})
}

// NavigatePage switches the live page view. Navigating to the current
// page is a no-op so repeated reports do not fragment the view
// intervals.
func (e *Engine) NavigatePage(page int, timestampMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled || page < 1 || page == e.page {
		return
	}

	from := e.page
	e.page = page
	e.tracker.SwitchPage(page, timestampMs)
	e.tracker.Record(domain.InteractionEvent{
		Type:        domain.EventNavigate,
		TimestampMs: timestampMs,
		PageNumber:  page,
		Details:     map[string]any{"from_page": from},
	})
}

// Snip records a region capture interaction.
func (e *Engine) Snip(x, y, width, height float64, timestampMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return
	}

	e.tracker.Record(domain.InteractionEvent{
		Type:        domain.EventSnip,
		TimestampMs: timestampMs,
		PageNumber:  e.page,
		Details:     map[string]any{"x": x, "y": y, "width": width, "height": height},
	})
}

// Ingest dispatches one wire-format event to the matching typed method.
// Unknown kinds are rejected; missing detail fields fall back to zero
// values rather than failing the batch.
func (e *Engine) Ingest(ev domain.InteractionEvent) error {
	if !ev.Type.Valid() {
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	switch ev.Type {
	case domain.EventMove:
		e.PointerMove(detailFloat(ev.Details, "screen_x"), detailFloat(ev.Details, "screen_y"), ev.TimestampMs)
	case domain.EventClick:
		e.Click(detailFloat(ev.Details, "screen_x"), detailFloat(ev.Details, "screen_y"), ev.TimestampMs)
	case domain.EventScroll:
		e.Scroll(detailFloat(ev.Details, "delta_y"), ev.TimestampMs)
	case domain.EventZoom:
		e.SetZoom(detailFloat(ev.Details, "zoom"), ev.TimestampMs)
	case domain.EventRotate:
		e.SetRotation(int(detailFloat(ev.Details, "degrees")), ev.TimestampMs)
	case domain.EventNavigate:
		page := ev.PageNumber
		if page == 0 {
			page = int(detailFloat(ev.Details, "page"))
		}
		e.NavigatePage(page, ev.TimestampMs)
	case domain.EventSnip:
		e.Snip(
			detailFloat(ev.Details, "x"), detailFloat(ev.Details, "y"),
			detailFloat(ev.Details, "width"), detailFloat(ev.Details, "height"),
			ev.TimestampMs,
		)
	}
	return nil
}

// HeatmapSnapshot returns a read-only copy of the live heatmap.
func (e *Engine) HeatmapSnapshot() []heatmap.PageSnapshot {
	e.mu.Lock()
	heat := e.heat
	e.mu.Unlock()
	return heat.Snapshot()
}

// RecentEvents returns up to limit most recent interaction events in
// chronological order. A non-positive limit returns everything logged.
func (e *Engine) RecentEvents(limit int) []domain.InteractionEvent {
	e.mu.Lock()
	events := e.events.Events()
	e.mu.Unlock()

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events
}

// Snapshot builds the live session record including the current heatmap
// summary.
func (e *Engine) Snapshot() domain.SessionRecord {
	e.mu.Lock()
	tracker, heat := e.tracker, e.heat
	e.mu.Unlock()

	summary := heat.Summary()
	return tracker.Snapshot(time.Now().UnixMilli(), &summary)
}

// ExportJSON renders the live session record as indented JSON.
func (e *Engine) ExportJSON() ([]byte, error) {
	data, err := json.MarshalIndent(e.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session export: %w", err)
	}
	return data, nil
}

// ExportReport renders the live session record as a human-readable
// report.
func (e *Engine) ExportReport() string {
	return session.Report(e.Snapshot())
}

// CloseSession ends the live session at ts, persists it with a forced
// flush, and starts a fresh session so the engine keeps serving.
// Returns the closed session's record.
func (e *Engine) CloseSession(ts int64) domain.SessionRecord {
	e.mu.Lock()
	tracker, heat := e.tracker, e.heat
	tracker.Close(ts)
	summary := heat.Summary()
	record := tracker.Snapshot(ts, &summary)
	e.resetSessionLocked(ts)
	e.mu.Unlock()

	e.store.SaveSession(record)
	e.store.Flush()

	e.log.Info("Session closed",
		logger.String("session_id", record.SessionID),
		logger.Int64("duration_ms", record.TotalDurationMs),
		logger.Int("pages", record.TotalPages),
	)
	return record
}

// resetSessionLocked starts a fresh session with empty pipeline state.
// Caller holds e.mu except during construction.
func (e *Engine) resetSessionLocked(startMs int64) {
	e.heat = heatmap.New(heatmap.Options{
		CellSize:         e.cfg.Heatmap.CellSize,
		Radius:           e.cfg.Heatmap.Radius,
		MaxIntensity:     e.cfg.Heatmap.MaxIntensity,
		DecayFactor:      e.cfg.Heatmap.DecayFactor,
		DecayThreshold:   e.cfg.Heatmap.DecayThreshold,
		SnapshotDebounce: e.cfg.Heatmap.SnapshotDebounce,
	})
	if e.viewport.Valid() {
		e.heat.SetZoom(e.viewport.Zoom)
	}
	e.events = eventlog.New(e.cfg.EventLog.Capacity)
	e.tracker = session.NewTracker(startMs, e.events)
	e.tracker.SwitchPage(e.page, startMs)
}

// run drives the periodic decay, snapshot persistence, and retention
// loops until Close.
func (e *Engine) run() {
	defer e.wg.Done()

	decay := time.NewTicker(e.cfg.Heatmap.DecayInterval)
	defer decay.Stop()
	snapshot := time.NewTicker(e.cfg.Persistence.SnapshotInterval)
	defer snapshot.Stop()
	cleanup := time.NewTicker(e.cfg.Retention.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-decay.C:
			e.mu.Lock()
			heat := e.heat
			e.mu.Unlock()
			if removed := heat.Decay(); removed > 0 {
				e.log.Debug("Heatmap decay removed cells", logger.Int("removed", removed))
			}

		case <-snapshot.C:
			e.store.SaveSession(e.Snapshot())

		case <-cleanup.C:
			e.store.Cleanup()

		case <-e.stop:
			return
		}
	}
}

// detailFloat reads a numeric detail field, tolerating the float64 that
// JSON decoding produces for all numbers.
func detailFloat(details map[string]any, key string) float64 {
	if details == nil {
		return 0
	}
	switch v := details[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
