package raster

// LabelComponents labels the 8-connected foreground components of a flat
// row-major slice mask. It returns the label image (0 for background, 1..n
// for components) and the number of components found.
func LabelComponents(mask []uint8, width, height int) ([]int, int) {
	labels := make([]int, width*height)
	next := 0
	stack := make([][2]int, 0, 64)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if mask[idx] == 0 || labels[idx] != 0 {
				continue
			}
			next++
			labels[idx] = next
			stack = append(stack[:0], [2]int{x, y})
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := p[0]+dx, p[1]+dy
						if nx < 0 || nx >= width || ny < 0 || ny >= height {
							continue
						}
						nidx := ny*width + nx
						if mask[nidx] != 0 && labels[nidx] == 0 {
							labels[nidx] = next
							stack = append(stack, [2]int{nx, ny})
						}
					}
				}
			}
		}
	}
	return labels, next
}

// ComponentSizes returns the pixel count of each label in a label image,
// indexed by label (entry 0 is unused).
func ComponentSizes(labels []int, numLabels int) []int {
	sizes := make([]int, numLabels+1)
	for _, l := range labels {
		if l > 0 {
			sizes[l]++
		}
	}
	return sizes
}

// Vectorize extracts the external boundary of every 8-connected component of
// a slice mask as an ordered polygon of pixel-center coordinates. Holes are
// not represented: only outer boundaries are traced, so rasterizing the
// result fills any interior cavity. Components whose boundary collapses to
// fewer than 3 points are dropped.
func Vectorize(mask []uint8, width, height int) []Polygon {
	labels, n := LabelComponents(mask, width, height)
	polys := make([]Polygon, 0, n)
	for label := 1; label <= n; label++ {
		ring := traceBoundary(labels, width, height, label)
		if len(ring) < 3 {
			continue
		}
		polys = append(polys, ring)
	}
	return polys
}

// Moore neighborhood in clockwise order starting from the west neighbor.
var mooreOffsets = [8][2]int{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// traceBoundary walks the outer boundary of one labeled component with
// Moore-neighbor tracing and Jacob's stopping criterion. Collinear runs are
// compressed to their endpoints.
func traceBoundary(labels []int, width, height, label int) Polygon {
	sx, sy, ok := findStart(labels, width, height, label)
	if !ok {
		return nil
	}

	pts := make(Polygon, 0, 64)
	add := func(x, y int) {
		p := Point{X: float64(x), Y: float64(y)}
		n := len(pts)
		if n > 0 && pts[n-1] == p {
			return
		}
		if n >= 2 {
			a, b := pts[n-2], pts[n-1]
			cross := (b.X-a.X)*(p.Y-b.Y) - (b.Y-a.Y)*(p.X-b.X)
			dot := (b.X-a.X)*(p.X-b.X) + (b.Y-a.Y)*(p.Y-b.Y)
			// Drop b only when the walk continues through it in the same
			// direction. A zero cross product alone also matches a 180°
			// out-and-back at a one-neighbor tip pixel, and removing that
			// vertex would lose the tip on refill.
			if cross == 0 && dot > 0 {
				pts = pts[:n-1]
			}
		}
		pts = append(pts, p)
	}

	at := func(x, y int) bool {
		return x >= 0 && x < width && y >= 0 && y < height && labels[y*width+x] == label
	}

	cx, cy := sx, sy
	bx, by := sx-1, sy // backtrack starts to the west of the start pixel
	add(cx, cy)

	startCx, startCy := cx, cy
	startBx, startBy := bx, by
	maxSteps := width*height*4 + 8

	for step := 0; step < maxSteps; step++ {
		// Find the backtrack direction in the Moore neighborhood of the
		// current pixel, then scan clockwise from it.
		from := 0
		for i, off := range mooreOffsets {
			if cx+off[0] == bx && cy+off[1] == by {
				from = i
				break
			}
		}
		found := false
		for i := 1; i <= 8; i++ {
			off := mooreOffsets[(from+i)%8]
			nx, ny := cx+off[0], cy+off[1]
			if at(nx, ny) {
				prev := mooreOffsets[(from+i-1)%8]
				bx, by = cx+prev[0], cy+prev[1]
				cx, cy = nx, ny
				found = true
				break
			}
		}
		if !found {
			break // isolated pixel
		}
		add(cx, cy)
		if cx == startCx && cy == startCy && bx == startBx && by == startBy {
			break
		}
	}

	// Drop a duplicated closing point; callers close rings themselves.
	if len(pts) >= 2 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// findStart locates the first pixel of the component in scan order. Scan
// order guarantees the west neighbor is background, the precondition for
// the backtrack initialization.
func findStart(labels []int, width, height, label int) (int, int, bool) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if labels[y*width+x] == label {
				return x, y, true
			}
		}
	}
	return -1, -1, false
}
