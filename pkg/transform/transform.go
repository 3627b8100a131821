// Package transform converts between pixel coordinates and world (patient)
// coordinates in millimeters, and resolves world z positions to axial slice
// indices against a reference frame.
package transform

import (
	"fmt"
	"math"

	"rtcontour/pkg/volume"
)

// ErrOutOfRange is returned when a slice index or world z position cannot be
// resolved inside the volume bounds.
var ErrOutOfRange = fmt.Errorf("coordinate out of volume range")

// Transformer maps pixel (x,y,slice) coordinates to world (mm) coordinates
// and back for one loaded image series.
//
// Only axis-aligned origin+spacing geometry is honored. The direction-cosine
// matrix carried by volume.Geometry is stored for provenance but not
// applied; oblique acquisitions are not supported.
type Transformer struct {
	geom  volume.Geometry
	frame *volume.ReferenceFrame
}

// New creates a transformer for the given geometry and reference frame.
// The frame's SliceZ length defines the number of addressable slices.
func New(geom volume.Geometry, frame *volume.ReferenceFrame) *Transformer {
	return &Transformer{geom: geom, frame: frame}
}

// NumSlices returns the number of axial slices addressable by the transformer.
func (t *Transformer) NumSlices() int {
	return len(t.frame.SliceZ)
}

// Frame returns the reference frame the transformer resolves against.
func (t *Transformer) Frame() *volume.ReferenceFrame {
	return t.frame
}

// PixelToWorld converts a pixel coordinate on an axial slice to world
// coordinates in millimeters. The z coordinate is taken from the reference
// frame's per-slice positions, not derived from spacing, so non-uniform
// slice spacing round-trips exactly.
func (t *Transformer) PixelToWorld(x, y float64, sliceIdx int) (wx, wy, wz float64, err error) {
	if sliceIdx < 0 || sliceIdx >= len(t.frame.SliceZ) {
		return 0, 0, 0, fmt.Errorf("slice index %d: %w", sliceIdx, ErrOutOfRange)
	}
	wx = t.geom.Origin.X + x*t.geom.Spacing.X
	wy = t.geom.Origin.Y + y*t.geom.Spacing.Y
	wz = t.frame.SliceZ[sliceIdx]
	return wx, wy, wz, nil
}

// WorldToPixel converts a world coordinate in millimeters to a pixel
// coordinate plus the resolved axial slice index.
func (t *Transformer) WorldToPixel(wx, wy, wz float64) (x, y float64, sliceIdx int, err error) {
	sliceIdx, err = t.SliceIndexFromZ(wz)
	if err != nil {
		return 0, 0, 0, err
	}
	x = (wx - t.geom.Origin.X) / t.geom.Spacing.X
	y = (wy - t.geom.Origin.Y) / t.geom.Spacing.Y
	return x, y, sliceIdx, nil
}

// SliceIndexFromZ resolves a world z position to the axial slice it lies on.
//
// The nearest entry of the reference frame's slice positions wins when its
// distance to wz is under half the slice spacing. Otherwise the index is
// estimated from origin and spacing; an estimate outside the volume bounds
// is an error, never wrapped or clamped into range.
func (t *Transformer) SliceIndexFromZ(wz float64) (int, error) {
	n := len(t.frame.SliceZ)
	if n == 0 {
		return 0, fmt.Errorf("empty reference frame: %w", ErrOutOfRange)
	}

	// Nearest slice position.
	best := 0
	bestDist := math.Abs(t.frame.SliceZ[0] - wz)
	for i := 1; i < n; i++ {
		if d := math.Abs(t.frame.SliceZ[i] - wz); d < bestDist {
			best = i
			bestDist = d
		}
	}
	if t.geom.Spacing.Z > 0 && bestDist < t.geom.Spacing.Z/2 {
		return best, nil
	}

	// Fall back to a uniform-grid estimate from origin and spacing.
	if t.geom.Spacing.Z <= 0 {
		return 0, fmt.Errorf("z=%.3f with non-positive slice spacing: %w", wz, ErrOutOfRange)
	}
	idx := int(math.Round((wz - t.geom.Origin.Z) / t.geom.Spacing.Z))
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("z=%.3f resolves to slice %d outside [0,%d): %w", wz, idx, n, ErrOutOfRange)
	}
	return idx, nil
}
