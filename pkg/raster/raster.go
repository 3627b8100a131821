package raster

import (
	"log/slog"
	"math"
	"sort"
)

// Rasterizer scan-converts closed polygons into binary slice masks of a
// fixed width and height.
type Rasterizer struct {
	width  int
	height int
	log    *slog.Logger
}

// NewRasterizer creates a rasterizer for slices of the given dimensions.
// A nil logger falls back to slog.Default().
func NewRasterizer(width, height int, log *slog.Logger) *Rasterizer {
	if log == nil {
		log = slog.Default()
	}
	return &Rasterizer{width: width, height: height, log: log}
}

// Rasterize fills every polygon into one boolean raster, unioning the
// results. Points outside the slice bounds are clipped to the nearest edge
// before filling; a polygon left with fewer than 3 distinct points after
// clipping is skipped with a warning rather than failing the whole slice.
//
// The returned mask is flat row-major, length width*height, with 1 for
// covered pixels. Note that rasterization is lossy in one direction only:
// Rasterize(Vectorize(mask)) reproduces mask within a one-pixel boundary
// tolerance, but Vectorize(Rasterize(polygon)) is not guaranteed to return
// the original vertices.
func (r *Rasterizer) Rasterize(polygons []Polygon) []uint8 {
	mask := make([]uint8, r.width*r.height)
	for _, poly := range polygons {
		ring := r.clipRing(poly)
		if ring == nil {
			r.log.Warn("skipping degenerate polygon after clipping",
				"points", len(poly.ring()), "width", r.width, "height", r.height)
			continue
		}
		r.fillRing(mask, ring)
		r.outlineRing(mask, ring)
	}
	return mask
}

// clipRing clamps every vertex into the slice bounds and drops consecutive
// duplicates the clamping produced. It returns nil when fewer than 3
// distinct vertices survive.
func (r *Rasterizer) clipRing(poly Polygon) []Point {
	src := poly.ring()
	out := make([]Point, 0, len(src))
	for _, p := range src {
		q := Point{
			X: math.Min(math.Max(p.X, 0), float64(r.width-1)),
			Y: math.Min(math.Max(p.Y, 0), float64(r.height-1)),
		}
		if len(out) > 0 && out[len(out)-1] == q {
			continue
		}
		out = append(out, q)
	}
	// The clamp can also fold the last vertex onto the first.
	for len(out) >= 2 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	if len(distinctPoints(out)) < 3 {
		return nil
	}
	return out
}

func distinctPoints(pts []Point) []Point {
	seen := make(map[Point]bool, len(pts))
	out := pts[:0:0]
	for _, p := range pts {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// fillRing paints the even-odd interior of the ring. Each pixel row is
// sampled at its center line; crossings use a half-open edge rule so a
// vertex lying exactly on a sample line is counted once.
func (r *Rasterizer) fillRing(mask []uint8, ring []Point) {
	type edge struct {
		x0, y0 float64 // lower endpoint
		x1, y1 float64 // upper endpoint
	}

	edges := make([]edge, 0, len(ring))
	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	for i := range ring {
		p0 := ring[i]
		p1 := ring[(i+1)%len(ring)]
		if p0.Y == p1.Y {
			continue // horizontal edges carry no crossings
		}
		if p0.Y > p1.Y {
			p0, p1 = p1, p0
		}
		edges = append(edges, edge{p0.X, p0.Y, p1.X, p1.Y})
		minY = math.Min(minY, p0.Y)
		maxY = math.Max(maxY, p1.Y)
	}
	if len(edges) == 0 {
		return
	}

	yStart := int(math.Ceil(minY))
	yEnd := int(math.Floor(maxY))
	if yStart < 0 {
		yStart = 0
	}
	if yEnd >= r.height {
		yEnd = r.height - 1
	}

	xs := make([]float64, 0, len(edges))
	for y := yStart; y <= yEnd; y++ {
		sy := float64(y)
		xs = xs[:0]
		for _, e := range edges {
			if e.y0 <= sy && sy < e.y1 {
				xs = append(xs, e.x0+(sy-e.y0)*(e.x1-e.x0)/(e.y1-e.y0))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(math.Ceil(xs[i]))
			x1 := int(math.Floor(xs[i+1]))
			if x0 < 0 {
				x0 = 0
			}
			if x1 >= r.width {
				x1 = r.width - 1
			}
			for x := x0; x <= x1; x++ {
				mask[y*r.width+x] = 1
			}
		}
	}
}

// outlineRing marks every pixel the ring passes through, so thin or
// one-pixel-wide shapes survive even when the even-odd interior is empty.
func (r *Rasterizer) outlineRing(mask []uint8, ring []Point) {
	for i := range ring {
		p0 := ring[i]
		p1 := ring[(i+1)%len(ring)]
		r.drawLine(mask, p0, p1)
	}
}

// drawLine rasterizes a segment with the integer Bresenham walk over the
// rounded endpoints.
func (r *Rasterizer) drawLine(mask []uint8, p0, p1 Point) {
	x0, y0 := int(math.Round(p0.X)), int(math.Round(p0.Y))
	x1, y1 := int(math.Round(p1.X)), int(math.Round(p1.Y))

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		if x0 >= 0 && x0 < r.width && y0 >= 0 && y0 < r.height {
			mask[y0*r.width+x0] = 1
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
