// Package contour holds the canonical in-memory representation of RT
// structures: named structures, each mapping axial slice indices to sets of
// closed polygons. Contours are authoritative; masks are derived from them
// on demand and never persisted as the source of truth.
package contour

import (
	"fmt"

	"rtcontour/pkg/raster"
)

// ClosedPolygon is an immutable closed ring of pixel-space points. The
// closure invariant (first point equals last) is established at construction
// and never violated afterwards; edits replace the polygon rather than
// mutating it.
type ClosedPolygon struct {
	pts []raster.Point
}

// NewClosedPolygon validates and constructs a closed polygon from an ordered
// point sequence. At least 3 distinct points are required. When close is
// true and the ring is not already closed, the first point is appended as
// the last; when close is false the points are stored as given (the ring is
// still treated as closed by consumers).
func NewClosedPolygon(points []raster.Point, close bool) (ClosedPolygon, error) {
	distinct := make(map[raster.Point]bool, len(points))
	for _, p := range points {
		distinct[p] = true
	}
	if len(distinct) < 3 {
		return ClosedPolygon{}, fmt.Errorf("polygon needs at least 3 distinct points, got %d: %w",
			len(distinct), ErrValidation)
	}

	pts := make([]raster.Point, len(points), len(points)+1)
	copy(pts, points)
	if close && pts[0] != pts[len(pts)-1] {
		pts = append(pts, pts[0])
	}
	return ClosedPolygon{pts: pts}, nil
}

// Len returns the number of stored points, including a duplicated closing
// point when present.
func (p ClosedPolygon) Len() int {
	return len(p.pts)
}

// Points returns a copy of the stored points.
func (p ClosedPolygon) Points() []raster.Point {
	out := make([]raster.Point, len(p.pts))
	copy(out, p.pts)
	return out
}

// Ring returns a copy of the vertices without a duplicated closing point,
// the form the rasterizer and the codecs consume.
func (p ClosedPolygon) Ring() []raster.Point {
	n := len(p.pts)
	if n >= 2 && p.pts[0] == p.pts[n-1] {
		n--
	}
	out := make([]raster.Point, n)
	copy(out, p.pts[:n])
	return out
}

// AsRasterPolygon adapts the polygon for the rasterizer without copying.
// The rasterizer never mutates its input.
func (p ClosedPolygon) AsRasterPolygon() raster.Polygon {
	return raster.Polygon(p.pts)
}
