// Package geometry converts on-screen pointer positions into document-space
// coordinates that are independent of the current zoom and display size.
package geometry

import "github.com/jonesrussell/viewtrace/internal/domain"

// marginFraction is the fraction of the displayed dimension accepted as a
// margin around the rendered surface before a position is rejected.
const marginFraction = 0.02

// Viewport describes the rendered page surface as the viewer reports it:
// the surface's on-screen bounding box, its raw rendered pixel dimensions,
// and the current zoom scale.
type Viewport struct {
	Left          float64 `json:"left"`
	Top           float64 `json:"top"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	SurfaceWidth  float64 `json:"surface_width"`
	SurfaceHeight float64 `json:"surface_height"`
	Zoom          float64 `json:"zoom"`
}

// Valid reports whether the viewport carries usable geometry.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0 &&
		v.SurfaceWidth > 0 && v.SurfaceHeight > 0 &&
		v.Zoom > 0
}

// ToDocument maps an on-screen pointer position to a document-space point.
// The position is first normalized into the surface's own pixel space via
// the ratio of raw to displayed dimensions, then divided by the zoom scale,
// so downstream grid math is zoom-independent. Positions outside the
// surface (plus a small margin) are rejected with ok == false.
func (v Viewport) ToDocument(screenX, screenY float64, timestampMs int64) (domain.DocumentPoint, bool) {
	if !v.Valid() {
		return domain.DocumentPoint{}, false
	}

	relX := screenX - v.Left
	relY := screenY - v.Top

	marginX := v.Width * marginFraction
	marginY := v.Height * marginFraction
	if relX < -marginX || relX > v.Width+marginX ||
		relY < -marginY || relY > v.Height+marginY {
		return domain.DocumentPoint{}, false
	}

	surfaceX := relX * (v.SurfaceWidth / v.Width)
	surfaceY := relY * (v.SurfaceHeight / v.Height)

	return domain.DocumentPoint{
		X:           surfaceX / v.Zoom,
		Y:           surfaceY / v.Zoom,
		TimestampMs: timestampMs,
	}, true
}

// ToScreen maps a document-space point back to on-screen coordinates.
// It is the inverse of ToDocument and exists so the mapping can be
// verified to round-trip.
func (v Viewport) ToScreen(p domain.DocumentPoint) (x, y float64) {
	surfaceX := p.X * v.Zoom
	surfaceY := p.Y * v.Zoom

	x = surfaceX*(v.Width/v.SurfaceWidth) + v.Left
	y = surfaceY*(v.Height/v.SurfaceHeight) + v.Top
	return x, y
}
