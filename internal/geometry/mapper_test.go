package geometry_test

import (
	"math"
	"testing"

	"github.com/jonesrussell/viewtrace/internal/domain"
	"github.com/jonesrussell/viewtrace/internal/geometry"
)

// roundTripTolerance is the allowed floating-point error for a
// screen -> document -> screen round trip.
const roundTripTolerance = 1e-9

func testViewport(zoom float64) geometry.Viewport {
	return geometry.Viewport{
		Left:          100,
		Top:           50,
		Width:         800,
		Height:        1000,
		SurfaceWidth:  1600,
		SurfaceHeight: 2000,
		Zoom:          zoom,
	}
}

func TestToDocument_InsideSurface(t *testing.T) {
	vp := testViewport(2.0)

	p, ok := vp.ToDocument(500, 550, 1234)
	if !ok {
		t.Fatal("expected position inside the surface to be accepted")
	}

	// relX=400 of 800 displayed px -> 800 surface px -> 400 document units at zoom 2.
	if p.X != 400 {
		t.Fatalf("expected document x 400, got %v", p.X)
	}
	if p.Y != 500 {
		t.Fatalf("expected document y 500, got %v", p.Y)
	}
	if p.TimestampMs != 1234 {
		t.Fatalf("expected timestamp to carry through, got %d", p.TimestampMs)
	}
}

func TestToDocument_OutsideSurfaceRejected(t *testing.T) {
	vp := testViewport(1.0)

	cases := []struct {
		name string
		x, y float64
	}{
		{"far left", 0, 500},
		{"far right", 2000, 500},
		{"above", 500, 0},
		{"below", 500, 2000},
	}

	for _, tc := range cases {
		if _, ok := vp.ToDocument(tc.x, tc.y, 0); ok {
			t.Fatalf("%s: expected rejection for (%v, %v)", tc.name, tc.x, tc.y)
		}
	}
}

func TestToDocument_MarginAccepted(t *testing.T) {
	vp := testViewport(1.0)

	// 1% outside the left edge is within the 2% margin.
	if _, ok := vp.ToDocument(vp.Left-vp.Width*0.01, 500, 0); !ok {
		t.Fatal("expected position within margin to be accepted")
	}

	// 3% outside the left edge is beyond the margin.
	if _, ok := vp.ToDocument(vp.Left-vp.Width*0.03, 500, 0); ok {
		t.Fatal("expected position beyond margin to be rejected")
	}
}

func TestToDocument_InvalidViewportRejected(t *testing.T) {
	vp := geometry.Viewport{Width: 800, Height: 1000}
	if _, ok := vp.ToDocument(400, 500, 0); ok {
		t.Fatal("expected rejection when zoom and surface dimensions are unset")
	}
}

func TestRoundTrip_AcrossZoomLevels(t *testing.T) {
	zooms := []float64{0.25, 0.5, 1.0, 1.5, 2.0, 4.0}

	for _, zoom := range zooms {
		// The rendered surface grows with zoom, keeping the point on-surface
		// at every level.
		vp := testViewport(zoom)
		vp.SurfaceWidth *= zoom
		vp.SurfaceHeight *= zoom
		doc := domain.DocumentPoint{X: 123.456, Y: 654.321}

		sx, sy := vp.ToScreen(doc)
		back, ok := vp.ToDocument(sx, sy, 0)
		if !ok {
			t.Fatalf("zoom %v: round-trip position rejected", zoom)
		}

		if math.Abs(back.X-doc.X) > roundTripTolerance {
			t.Fatalf("zoom %v: x drifted from %v to %v", zoom, doc.X, back.X)
		}
		if math.Abs(back.Y-doc.Y) > roundTripTolerance {
			t.Fatalf("zoom %v: y drifted from %v to %v", zoom, doc.Y, back.Y)
		}
	}
}

func TestZoomIndependence(t *testing.T) {
	// The same physical spot on the page maps to the same document point
	// regardless of zoom. At zoom z the displayed size scales by z while
	// the surface pixels scale with it.
	base := testViewport(1.0)

	for _, zoom := range []float64{0.5, 2.0, 3.0} {
		zoomed := base
		zoomed.Zoom = zoom
		zoomed.SurfaceWidth = base.SurfaceWidth * zoom
		zoomed.SurfaceHeight = base.SurfaceHeight * zoom

		p1, ok1 := base.ToDocument(300, 400, 0)
		p2, ok2 := zoomed.ToDocument(300, 400, 0)
		if !ok1 || !ok2 {
			t.Fatalf("zoom %v: expected both mappings to succeed", zoom)
		}

		if math.Abs(p1.X-p2.X) > roundTripTolerance || math.Abs(p1.Y-p2.Y) > roundTripTolerance {
			t.Fatalf("zoom %v: document point changed with zoom: (%v,%v) vs (%v,%v)",
				zoom, p1.X, p1.Y, p2.X, p2.Y)
		}
	}
}
