// Package session owns the live session record: page view intervals,
// per-page interaction counters, and the chronological interaction log.
package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jonesrussell/viewtrace/internal/domain"
	"github.com/jonesrussell/viewtrace/internal/eventlog"
)

// Tracker accumulates one session's state. The session ID is generated
// once at construction and never reused. At most one PageView is open at
// any time; switching pages closes the previous view at the same instant
// the next one opens, so intervals are gapless and non-overlapping.
type Tracker struct {
	mu        sync.Mutex
	id        string
	startMs   int64
	endMs     int64
	closed    []domain.PageView
	open      *domain.PageView
	pagesSeen map[int]struct{}
	log       *eventlog.Log
}

// NewTracker creates a Tracker starting at startMs, logging interactions
// into log.
func NewTracker(startMs int64, log *eventlog.Log) *Tracker {
	return &Tracker{
		id:        uuid.NewString(),
		startMs:   startMs,
		pagesSeen: make(map[int]struct{}),
		log:       log,
	}
}

// ID returns the stable session identifier.
func (t *Tracker) ID() string {
	return t.id
}

// SwitchPage closes the open page view at ts and opens a new one for
// page at the same timestamp.
func (t *Tracker) SwitchPage(page int, ts int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closeOpenLocked(ts)
	t.open = &domain.PageView{
		PageNumber:  page,
		StartTimeMs: ts,
	}
	t.pagesSeen[page] = struct{}{}
}

// CountMovement bumps the open page view's mouse movement counter.
// Movements are counted but not logged as interaction events.
func (t *Tracker) CountMovement() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open != nil {
		t.open.MouseMovements++
	}
}

// Record logs an interaction event and bumps the matching counter on the
// open page view.
func (t *Tracker) Record(ev domain.InteractionEvent) {
	t.mu.Lock()
	if t.open != nil {
		switch ev.Type {
		case domain.EventScroll:
			t.open.ScrollEvents++
		case domain.EventZoom:
			t.open.ZoomChanges++
		case domain.EventRotate:
			t.open.RotationChanges++
		}
	}
	t.mu.Unlock()

	t.log.Push(ev)
}

// Snapshot builds a SessionRecord from the current state. The open page
// view is included with its running total; the record is safe to persist
// repeatedly since identical snapshots are idempotent writes.
func (t *Tracker) Snapshot(nowMs int64, summary *domain.HeatmapSummary) domain.SessionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	views := make([]domain.PageView, len(t.closed), len(t.closed)+1)
	copy(views, t.closed)
	if t.open != nil {
		running := *t.open
		running.TotalTimeMs = nowMs - running.StartTimeMs
		views = append(views, running)
	}

	endMs := t.endMs
	durationMs := nowMs - t.startMs
	if endMs != 0 {
		durationMs = endMs - t.startMs
	}

	return domain.SessionRecord{
		SessionID:       t.id,
		StartTimeMs:     t.startMs,
		EndTimeMs:       endMs,
		TotalDurationMs: durationMs,
		TotalPages:      len(t.pagesSeen),
		PageViews:       views,
		Interactions:    t.log.Events(),
		HeatmapSummary:  summary,
	}
}

// Close ends the session at ts, closing any open page view. Calling
// Close more than once keeps the first end time.
func (t *Tracker) Close(ts int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.endMs != 0 {
		return
	}
	t.closeOpenLocked(ts)
	t.endMs = ts
}

// Closed reports whether the session has ended.
func (t *Tracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endMs != 0
}

// closeOpenLocked finalizes the open page view at ts. Caller holds t.mu.
func (t *Tracker) closeOpenLocked(ts int64) {
	if t.open == nil {
		return
	}
	t.open.EndTimeMs = ts
	t.open.TotalTimeMs = ts - t.open.StartTimeMs
	t.closed = append(t.closed, *t.open)
	t.open = nil
}
