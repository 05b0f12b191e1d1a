// Package heatmap turns a stream of document-space pointer samples into a
// decaying spatial density field per page.
package heatmap

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonesrussell/viewtrace/internal/domain"
)

// Options holds grid accumulator tunables. All values are in document
// units except SnapshotDebounce.
type Options struct {
	CellSize         float64
	Radius           float64
	MaxIntensity     float64
	DecayFactor      float64
	DecayThreshold   float64
	SnapshotDebounce time.Duration
}

// cellKey addresses one grid bucket within a page.
type cellKey struct {
	X int
	Y int
}

// cell is one grid bucket's accumulated state.
type cell struct {
	weight    float64
	intensity float64
}

// pageGrid is the sparse grid for a single page, created lazily.
type pageGrid struct {
	cells      map[cellKey]*cell
	lastUpdate time.Time
}

// CellSnapshot is a read-only copy of one grid cell.
type CellSnapshot struct {
	CellX     int     `json:"cell_x"`
	CellY     int     `json:"cell_y"`
	Weight    float64 `json:"weight"`
	Intensity float64 `json:"intensity"`
}

// PageSnapshot is a read-only copy of one page's grid.
type PageSnapshot struct {
	PageNumber   int            `json:"page_number"`
	LastUpdateMs int64          `json:"last_update_ms"`
	Cells        []CellSnapshot `json:"cells"`
}

// Accumulator maintains one decaying grid per page. It owns the grids
// exclusively; callers only ever receive snapshots.
type Accumulator struct {
	mu    sync.Mutex
	opts  Options
	zoom  float64
	pages map[int]*pageGrid

	lastSnapshot time.Time
	cached       []PageSnapshot
}

// New creates an Accumulator with the given options.
func New(opts Options) *Accumulator {
	return &Accumulator{
		opts:  opts,
		zoom:  1,
		pages: make(map[int]*pageGrid),
	}
}

// SetZoom scales the effective cell size and influence radius inversely
// with zoom so the perceived density stays consistent. Non-positive zoom
// values are ignored.
func (a *Accumulator) SetZoom(zoom float64) {
	if zoom <= 0 {
		return
	}
	a.mu.Lock()
	a.zoom = zoom
	a.mu.Unlock()
}

// Add applies radius-weighted influence from one document-space point to
// the page's grid. Every cell whose center lies within the influence
// radius gains weight 1 - distance/radius; intensity is the accumulated
// weight capped at MaxIntensity.
func (a *Accumulator) Add(page int, p domain.DocumentPoint) {
	a.mu.Lock()
	defer a.mu.Unlock()

	grid, ok := a.pages[page]
	if !ok {
		grid = &pageGrid{cells: make(map[cellKey]*cell)}
		a.pages[page] = grid
	}

	cellSize := a.opts.CellSize / a.zoom
	radius := a.opts.Radius / a.zoom

	centerX := int(math.Floor(p.X / cellSize))
	centerY := int(math.Floor(p.Y / cellSize))
	reach := int(math.Ceil(radius / cellSize))

	for dy := -reach; dy <= reach; dy++ {
		for dx := -reach; dx <= reach; dx++ {
			key := cellKey{X: centerX + dx, Y: centerY + dy}

			cx := (float64(key.X) + 0.5) * cellSize
			cy := (float64(key.Y) + 0.5) * cellSize
			dist := math.Hypot(p.X-cx, p.Y-cy)
			if dist > radius {
				continue
			}

			c, ok := grid.cells[key]
			if !ok {
				c = &cell{}
				grid.cells[key] = c
			}

			c.weight += 1 - dist/radius
			c.intensity = math.Min(a.opts.MaxIntensity, c.weight)
		}
	}

	grid.lastUpdate = time.Now()
	a.cached = nil
}

// Decay multiplies every cell's weight and intensity by the decay factor
// and removes cells whose intensity falls below the threshold, so aged
// cells reach exactly zero instead of lingering. Returns the number of
// cells removed.
func (a *Accumulator) Decay() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for page, grid := range a.pages {
		for key, c := range grid.cells {
			c.weight *= a.opts.DecayFactor
			c.intensity *= a.opts.DecayFactor
			if c.intensity < a.opts.DecayThreshold {
				delete(grid.cells, key)
				removed++
			}
		}
		if len(grid.cells) == 0 {
			delete(a.pages, page)
		}
	}

	if removed > 0 {
		a.cached = nil
	}
	return removed
}

// Snapshot returns a read-only copy of all pages' grids. Each call gets
// its own outer slice; within the debounce window the per-page cell data
// is served from a cached build, so a fast polling consumer cannot force
// repeated full copies. Callers must not modify the cell slices.
func (a *Accumulator) Snapshot() []PageSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && time.Since(a.lastSnapshot) < a.opts.SnapshotDebounce {
		return append([]PageSnapshot(nil), a.cached...)
	}

	snap := make([]PageSnapshot, 0, len(a.pages))
	for page, grid := range a.pages {
		ps := PageSnapshot{
			PageNumber:   page,
			LastUpdateMs: grid.lastUpdate.UnixMilli(),
			Cells:        make([]CellSnapshot, 0, len(grid.cells)),
		}
		for key, c := range grid.cells {
			ps.Cells = append(ps.Cells, CellSnapshot{
				CellX:     key.X,
				CellY:     key.Y,
				Weight:    c.weight,
				Intensity: c.intensity,
			})
		}
		sort.Slice(ps.Cells, func(i, j int) bool {
			if ps.Cells[i].CellY != ps.Cells[j].CellY {
				return ps.Cells[i].CellY < ps.Cells[j].CellY
			}
			return ps.Cells[i].CellX < ps.Cells[j].CellX
		})
		snap = append(snap, ps)
	}
	sort.Slice(snap, func(i, j int) bool {
		return snap[i].PageNumber < snap[j].PageNumber
	})

	a.cached = snap
	a.lastSnapshot = time.Now()
	return append([]PageSnapshot(nil), snap...)
}

// Summary derives the per-page aggregates persisted in place of raw grids.
func (a *Accumulator) Summary() domain.HeatmapSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := domain.HeatmapSummary{
		Pages: make([]domain.PageSummary, 0, len(a.pages)),
	}
	for page, grid := range a.pages {
		ps := domain.PageSummary{
			PageNumber: page,
			CellCount:  len(grid.cells),
		}
		for _, c := range grid.cells {
			ps.TotalWeight += c.weight
			if c.intensity > ps.PeakIntensity {
				ps.PeakIntensity = c.intensity
			}
		}
		summary.Pages = append(summary.Pages, ps)
	}
	sort.Slice(summary.Pages, func(i, j int) bool {
		return summary.Pages[i].PageNumber < summary.Pages[j].PageNumber
	})
	return summary
}

// Intensity returns the current intensity of one cell, or 0 if absent.
func (a *Accumulator) Intensity(page, cellX, cellY int) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	grid, ok := a.pages[page]
	if !ok {
		return 0
	}
	c, ok := grid.cells[cellKey{X: cellX, Y: cellY}]
	if !ok {
		return 0
	}
	return c.intensity
}
