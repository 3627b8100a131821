// Package raster converts between per-slice binary masks and polygon
// contours: scanline polygon fill (rasterization) and Moore-neighbor
// boundary tracing (vectorization). All functions operate on flat row-major
// slice masks and are pure, so callers may run them across slices in
// parallel without coordination.
package raster

// Point is a 2D pixel-space coordinate. Integer values address pixel
// centers, matching the contour convention of the DICOM import/export path.
type Point struct {
	X, Y float64
}

// Polygon is an ordered ring of points. Rasterization treats the ring as
// closed whether or not the first point is repeated at the end.
type Polygon []Point

// closed reports whether the ring explicitly repeats its first point.
func (p Polygon) closed() bool {
	return len(p) >= 2 && p[0] == p[len(p)-1]
}

// ring returns the polygon vertices without a duplicated closing point.
func (p Polygon) ring() []Point {
	if p.closed() {
		return p[:len(p)-1]
	}
	return p
}
