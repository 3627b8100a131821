// Package volume defines the shared 3D data types used throughout rtcontour:
// the intensity volume produced by DICOM CT/MR import, the binary masks
// derived from contours or segmentation, and the spatial metadata that ties
// voxel indices to patient (world) coordinates.
package volume

import "fmt"

// Spacing is the physical voxel size in millimeters along each axis.
type Spacing struct {
	X, Y, Z float64
}

// Origin is the world-space position of voxel (0,0,0) in millimeters.
type Origin struct {
	X, Y, Z float64
}

// Geometry describes how a volume is placed in world space.
//
// Direction holds the row-major 3x3 direction-cosine matrix as exported by
// the DICOM importer. It is carried through for provenance but never applied
// to coordinate transforms: only axis-aligned acquisitions are honored. See
// transform.Transformer for details.
type Geometry struct {
	Spacing   Spacing
	Origin    Origin
	Direction [9]float64
}

// AxisAligned is the identity direction matrix assumed by all transforms.
var AxisAligned = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Volume is a dense 3D intensity volume in (Z,Y,X) order, stored as a flat
// row-major array. For CT data the intensities are Hounsfield Units.
type Volume struct {
	// Data is the voxel data as a 1D array, indexed z*NY*NX + y*NX + x.
	Data []float64

	// NZ, NY, NX are the volume dimensions in voxels.
	NZ, NY, NX int

	// Geom places the volume in world space.
	Geom Geometry
}

// NewVolume allocates a zero-filled volume with the given dimensions.
func NewVolume(nz, ny, nx int, geom Geometry) *Volume {
	return &Volume{
		Data: make([]float64, nz*ny*nx),
		NZ:   nz,
		NY:   ny,
		NX:   nx,
		Geom: geom,
	}
}

// At returns the intensity at voxel (z,y,x). Callers are responsible for
// bounds; out-of-range indices panic like any slice access.
func (v *Volume) At(z, y, x int) float64 {
	return v.Data[z*v.NY*v.NX+y*v.NX+x]
}

// Set writes the intensity at voxel (z,y,x).
func (v *Volume) Set(z, y, x int, val float64) {
	v.Data[z*v.NY*v.NX+y*v.NX+x] = val
}

// Slice returns a copy of the axial slice at index z as a flat NY*NX array.
func (v *Volume) Slice(z int) ([]float64, error) {
	if z < 0 || z >= v.NZ {
		return nil, fmt.Errorf("slice index %d out of range [0,%d)", z, v.NZ)
	}
	out := make([]float64, v.NY*v.NX)
	copy(out, v.Data[z*v.NY*v.NX:(z+1)*v.NY*v.NX])
	return out, nil
}

// Mask is a dense binary volume congruent to a source Volume, in the same
// (Z,Y,X) layout. Masks are derived data: contours are the canonical
// representation and a mask is rasterized from them on demand.
type Mask struct {
	Data       []uint8
	NZ, NY, NX int
}

// NewMask allocates an empty mask with the given dimensions.
func NewMask(nz, ny, nx int) *Mask {
	return &Mask{
		Data: make([]uint8, nz*ny*nx),
		NZ:   nz,
		NY:   ny,
		NX:   nx,
	}
}

// At reports whether voxel (z,y,x) is set.
func (m *Mask) At(z, y, x int) bool {
	return m.Data[z*m.NY*m.NX+y*m.NX+x] != 0
}

// Set marks voxel (z,y,x).
func (m *Mask) Set(z, y, x int) {
	m.Data[z*m.NY*m.NX+y*m.NX+x] = 1
}

// Clear unmarks voxel (z,y,x).
func (m *Mask) Clear(z, y, x int) {
	m.Data[z*m.NY*m.NX+y*m.NX+x] = 0
}

// SliceData returns the underlying data of axial slice z without copying.
// The returned slice aliases the mask.
func (m *Mask) SliceData(z int) []uint8 {
	return m.Data[z*m.NY*m.NX : (z+1)*m.NY*m.NX]
}

// SetSlice copies a flat NY*NX slice mask into axial slice z.
func (m *Mask) SetSlice(z int, data []uint8) error {
	if z < 0 || z >= m.NZ {
		return fmt.Errorf("slice index %d out of range [0,%d)", z, m.NZ)
	}
	if len(data) != m.NY*m.NX {
		return fmt.Errorf("slice data length %d does not match %dx%d", len(data), m.NY, m.NX)
	}
	copy(m.SliceData(z), data)
	return nil
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// ReferenceFrame identifies the image geometry contours are tied to: the
// DICOM Frame of Reference UID plus the world-space z position of every
// axial slice. SliceZ is assumed non-decreasing and must have one entry per
// slice of the image volume. A ReferenceFrame is shared read-only by all
// structures of one session.
type ReferenceFrame struct {
	FrameOfReferenceUID string
	SliceZ              []float64
}

// FrameFromGeometry builds a uniform reference frame from origin and spacing,
// the fallback used when the importer supplies no per-slice positions.
func FrameFromGeometry(uid string, nz int, geom Geometry) *ReferenceFrame {
	zs := make([]float64, nz)
	for i := range zs {
		zs[i] = geom.Origin.Z + float64(i)*geom.Spacing.Z
	}
	return &ReferenceFrame{FrameOfReferenceUID: uid, SliceZ: zs}
}
