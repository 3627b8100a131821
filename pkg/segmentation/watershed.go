package segmentation

import (
	"container/heap"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"rtcontour/pkg/volume"
)

// Watershed segments one axial slice by flooding the gradient-magnitude
// landscape from marker seeds. When markers is nil they are generated
// automatically from local minima of the gradient, separated by at least
// minDistance pixels. The resulting mask marks every labeled basin; voxels
// at the slice's minimum intensity stay background.
//
// markers, when supplied, is a flat NY*NX label image (0 background, >0
// seed labels) congruent to the slice.
func (e *Engine) Watershed(name string, sliceIdx int, markers []int, minDistance int) (*volume.Mask, error) {
	if sliceIdx < 0 || sliceIdx >= e.vol.NZ {
		return nil, fmt.Errorf("slice index %d out of range [0,%d)", sliceIdx, e.vol.NZ)
	}
	w, h := e.vol.NX, e.vol.NY
	if markers != nil && len(markers) != w*h {
		return nil, fmt.Errorf("marker image length %d does not match %dx%d slice", len(markers), w, h)
	}
	if minDistance <= 0 {
		minDistance = 20
	}

	slice, err := e.vol.Slice(sliceIdx)
	if err != nil {
		return nil, err
	}

	// Normalize to [0,1]; a flat slice has no basins to flood.
	lo, hi := floats.Min(slice), floats.Max(slice)
	normalized := make([]float64, len(slice))
	if hi > lo {
		for i, v := range slice {
			normalized[i] = (v - lo) / (hi - lo)
		}
	}

	gradient := sobelMagnitude(normalized, w, h)

	if markers == nil {
		markers = minimaMarkers(gradient, w, h, minDistance)
	}

	labels := floodWatershed(gradient, markers, normalized, w, h)

	mask, ok := e.masks[name]
	if !ok {
		mask = e.AddMask(name, nil)
	}
	dst := mask.SliceData(sliceIdx)
	for i, l := range labels {
		if l > 0 {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
	return mask, nil
}

// sobelMagnitude computes the Sobel gradient magnitude of a flat slice with
// edge clamping.
func sobelMagnitude(data []float64, w, h int) []float64 {
	at := func(x, y int) float64 {
		if x < 0 {
			x = 0
		}
		if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		}
		if y >= h {
			y = h - 1
		}
		return data[y*w+x]
	}
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			out[y*w+x] = gx*gx + gy*gy
		}
	}
	return out
}

// minimaMarkers picks marker seeds at local minima of the gradient: pixels
// not exceeded by any neighbor inside the separation window, accepted
// greedily lowest-first while enforcing the minimum pairwise separation.
func minimaMarkers(gradient []float64, w, h, minDistance int) []int {
	type candidate struct {
		x, y int
		v    float64
	}
	var cands []candidate
	for y := 0; y < h; y++ {
	next:
		for x := 0; x < w; x++ {
			v := gradient[y*w+x]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					if gradient[ny*w+nx] < v {
						continue next
					}
				}
			}
			cands = append(cands, candidate{x, y, v})
		}
	}

	// Lowest gradient first.
	sort.Slice(cands, func(i, j int) bool { return cands[i].v < cands[j].v })

	markers := make([]int, w*h)
	var accepted []candidate
	label := 0
	minD2 := minDistance * minDistance
	for _, c := range cands {
		tooClose := false
		for _, a := range accepted {
			dx, dy := c.x-a.x, c.y-a.y
			if dx*dx+dy*dy < minD2 {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		label++
		markers[c.y*w+c.x] = label
		accepted = append(accepted, c)
	}
	return markers
}

type floodItem struct {
	idx   int
	value float64
	order int
}

type floodQueue []floodItem

func (q floodQueue) Len() int { return len(q) }
func (q floodQueue) Less(i, j int) bool {
	if q[i].value != q[j].value {
		return q[i].value < q[j].value
	}
	return q[i].order < q[j].order // FIFO among equal levels
}
func (q floodQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *floodQueue) Push(x any)        { *q = append(*q, x.(floodItem)) }
func (q *floodQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// floodWatershed grows marker labels over the gradient landscape in
// priority order, restricted to pixels above the slice minimum.
func floodWatershed(gradient []float64, markers []int, normalized []float64, w, h int) []int {
	labels := make([]int, w*h)
	q := &floodQueue{}
	heap.Init(q)
	order := 0

	push := func(idx int) {
		heap.Push(q, floodItem{idx: idx, value: gradient[idx], order: order})
		order++
	}

	for i, m := range markers {
		if m > 0 && normalized[i] > 0 {
			labels[i] = m
			push(i)
		}
	}

	for q.Len() > 0 {
		item := heap.Pop(q).(floodItem)
		x, y := item.idx%w, item.idx/w
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			nidx := ny*w + nx
			if labels[nidx] != 0 || normalized[nidx] <= 0 {
				continue
			}
			labels[nidx] = labels[item.idx]
			push(nidx)
		}
	}
	return labels
}
