package segmentation

import "rtcontour/pkg/raster"

// ellipseKernel builds a boolean elliptical structuring element with the
// given pixel radii, the shape used for margin dilation and noise opening.
func ellipseKernel(rx, ry int) ([]bool, int, int) {
	w, h := 2*rx+1, 2*ry+1
	k := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx := float64(x-rx) / float64(rx+1)
			fy := float64(y-ry) / float64(ry+1)
			if fx*fx+fy*fy <= 1.0 {
				k[y*w+x] = true
			}
		}
	}
	return k, w, h
}

// dilate grows the foreground of a flat slice mask by the kernel.
func dilate(mask []uint8, width, height int, kernel []bool, kw, kh int) []uint8 {
	out := make([]uint8, len(mask))
	rx, ry := kw/2, kh/2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y*width+x] == 0 {
				continue
			}
			for ky := 0; ky < kh; ky++ {
				for kx := 0; kx < kw; kx++ {
					if !kernel[ky*kw+kx] {
						continue
					}
					nx, ny := x+kx-rx, y+ky-ry
					if nx >= 0 && nx < width && ny >= 0 && ny < height {
						out[ny*width+nx] = 1
					}
				}
			}
		}
	}
	return out
}

// erode shrinks the foreground of a flat slice mask by the kernel.
func erode(mask []uint8, width, height int, kernel []bool, kw, kh int) []uint8 {
	out := make([]uint8, len(mask))
	rx, ry := kw/2, kh/2
	for y := 0; y < height; y++ {
	pixels:
		for x := 0; x < width; x++ {
			for ky := 0; ky < kh; ky++ {
				for kx := 0; kx < kw; kx++ {
					if !kernel[ky*kw+kx] {
						continue
					}
					nx, ny := x+kx-rx, y+ky-ry
					if nx < 0 || nx >= width || ny < 0 || ny >= height || mask[ny*width+nx] == 0 {
						continue pixels
					}
				}
			}
			out[y*width+x] = 1
		}
	}
	return out
}

// open performs an erosion followed by a dilation, removing foreground
// speckle smaller than the kernel.
func open(mask []uint8, width, height int, kernel []bool, kw, kh int) []uint8 {
	return dilate(erode(mask, width, height, kernel, kw, kh), width, height, kernel, kw, kh)
}

// box3 is the 3x3 square kernel used for noise opening.
func box3() ([]bool, int, int) {
	k := make([]bool, 9)
	for i := range k {
		k[i] = true
	}
	return k, 3, 3
}

// fillSmallHoles fills enclosed background cavities smaller than maxArea
// pixels. Background regions are 4-connected; any region touching the slice
// border is outside, not a hole.
func fillSmallHoles(mask []uint8, width, height, maxArea int) []uint8 {
	out := make([]uint8, len(mask))
	copy(out, mask)

	visited := make([]bool, len(mask))
	stack := make([][2]int, 0, 64)
	region := make([]int, 0, 256)

	for sy := 0; sy < height; sy++ {
		for sx := 0; sx < width; sx++ {
			sidx := sy*width + sx
			if mask[sidx] != 0 || visited[sidx] {
				continue
			}
			// Flood one background region.
			touchesBorder := false
			region = region[:0]
			visited[sidx] = true
			stack = append(stack[:0], [2]int{sx, sy})
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				region = append(region, p[1]*width+p[0])
				if p[0] == 0 || p[0] == width-1 || p[1] == 0 || p[1] == height-1 {
					touchesBorder = true
				}
				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := p[0]+d[0], p[1]+d[1]
					if nx < 0 || nx >= width || ny < 0 || ny >= height {
						continue
					}
					nidx := ny*width + nx
					if mask[nidx] == 0 && !visited[nidx] {
						visited[nidx] = true
						stack = append(stack, [2]int{nx, ny})
					}
				}
			}
			if !touchesBorder && len(region) < maxArea {
				for _, idx := range region {
					out[idx] = 1
				}
			}
		}
	}
	return out
}

// removeSmallComponents clears 8-connected foreground components below
// minArea pixels.
func removeSmallComponents(mask []uint8, width, height, minArea int) []uint8 {
	labels, n := raster.LabelComponents(mask, width, height)
	sizes := raster.ComponentSizes(labels, n)
	out := make([]uint8, len(mask))
	for i, l := range labels {
		if l > 0 && sizes[l] >= minArea {
			out[i] = 1
		}
	}
	return out
}

// keepLargestComponents keeps at most keep foreground components, largest
// first, clearing the rest.
func keepLargestComponents(mask []uint8, width, height, keep int) []uint8 {
	labels, n := raster.LabelComponents(mask, width, height)
	if n <= keep {
		out := make([]uint8, len(mask))
		copy(out, mask)
		return out
	}
	sizes := raster.ComponentSizes(labels, n)

	kept := make(map[int]bool, keep)
	for k := 0; k < keep; k++ {
		best, bestSize := 0, 0
		for l := 1; l <= n; l++ {
			if !kept[l] && sizes[l] > bestSize {
				best, bestSize = l, sizes[l]
			}
		}
		if best == 0 {
			break
		}
		kept[best] = true
	}

	out := make([]uint8, len(mask))
	for i, l := range labels {
		if kept[l] {
			out[i] = 1
		}
	}
	return out
}

// removeTopBorderComponents clears components whose bounding box reaches the
// top rows of the slice, the trachea heuristic for lung segmentation.
func removeTopBorderComponents(mask []uint8, width, height int) []uint8 {
	labels, n := raster.LabelComponents(mask, width, height)
	touching := make(map[int]bool, n)
	for y := 0; y <= 1 && y < height; y++ {
		for x := 0; x < width; x++ {
			if l := labels[y*width+x]; l > 0 {
				touching[l] = true
			}
		}
	}
	out := make([]uint8, len(mask))
	for i, l := range labels {
		if l > 0 && !touching[l] {
			out[i] = 1
		}
	}
	return out
}
