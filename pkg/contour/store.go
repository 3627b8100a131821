package contour

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"rtcontour/pkg/raster"
	"rtcontour/pkg/volume"
)

// SaveState tracks whether a store has unsaved mutations. The store starts
// Clean, transitions to Dirty on any mutating call, and returns to Clean
// only after a successful encode or export marks it saved.
type SaveState int

const (
	Clean SaveState = iota
	Dirty
)

// Params configures a new contour store.
type Params struct {
	// NumSlices, Height, Width are the dimensions of the source image
	// volume the contours are drawn on, in (Z,Y,X) order.
	NumSlices, Height, Width int

	// Geom places the image volume in world space.
	Geom volume.Geometry

	// Frame ties contours to the image geometry. When nil a uniform frame
	// is derived from Geom.
	Frame *volume.ReferenceFrame

	// Colors is the default color table; the zero value selects
	// DefaultColorTable.
	Colors ColorTable

	// Workers bounds the per-slice parallelism of mask rasterization.
	// Zero or negative means all available cores.
	Workers int

	// Log receives warnings for recoverable conditions. Nil falls back to
	// slog.Default().
	Log *slog.Logger
}

// Store is the canonical owner of all structures for one loaded image
// series. It is exclusively owned by a single caller: no internal locking is
// provided and concurrent mutation is the caller's responsibility to
// prevent.
type Store struct {
	numSlices int
	height    int
	width     int
	geom      volume.Geometry
	frame     *volume.ReferenceFrame

	order  []*Structure // insertion order, drives ROI numbering on encode
	byName map[string]*Structure

	current   string
	isocenter *[3]float64
	patient   PatientMeta

	colors  ColorTable
	workers int
	state   SaveState
	log     *slog.Logger
}

// NewStore creates an empty store for an image volume of the given shape.
func NewStore(p Params) *Store {
	if p.Log == nil {
		p.Log = slog.Default()
	}
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}
	if len(p.Colors.entries) == 0 {
		p.Colors = DefaultColorTable()
	}
	if p.Frame == nil {
		p.Frame = volume.FrameFromGeometry("", p.NumSlices, p.Geom)
	}
	return &Store{
		numSlices: p.NumSlices,
		height:    p.Height,
		width:     p.Width,
		geom:      p.Geom,
		frame:     p.Frame,
		byName:    make(map[string]*Structure),
		colors:    p.Colors,
		workers:   p.Workers,
		state:     Clean,
		log:       p.Log,
	}
}

// Dimensions returns the (Z,Y,X) shape of the image volume the store is
// bound to.
func (st *Store) Dimensions() (nz, ny, nx int) {
	return st.numSlices, st.height, st.width
}

// Geometry returns the spatial placement of the image volume.
func (st *Store) Geometry() volume.Geometry { return st.geom }

// Frame returns the reference frame shared by all structures in the store.
func (st *Store) Frame() *volume.ReferenceFrame { return st.frame }

// State returns the current save state.
func (st *Store) State() SaveState { return st.state }

// Modified reports whether the store holds unsaved mutations.
func (st *Store) Modified() bool { return st.state == Dirty }

// MarkSaved transitions the store back to Clean. Codecs call this after a
// successful encode or export; nothing else should.
func (st *Store) MarkSaved() { st.state = Clean }

func (st *Store) touch() { st.state = Dirty }

// PatientInfo returns the patient metadata attached to the store.
func (st *Store) PatientInfo() PatientMeta { return st.patient }

// SetPatientInfo replaces the patient metadata used on export.
func (st *Store) SetPatientInfo(meta PatientMeta) {
	st.patient = meta
	st.touch()
}

// Isocenter returns the plan isocenter in world coordinates, or false when
// none has been set.
func (st *Store) Isocenter() ([3]float64, bool) {
	if st.isocenter == nil {
		return [3]float64{}, false
	}
	return *st.isocenter, true
}

// SetIsocenter records the plan isocenter in world coordinates.
func (st *Store) SetIsocenter(world [3]float64) {
	iso := world
	st.isocenter = &iso
	st.touch()
}

// Structures returns all structures in insertion order. Encode relies on
// this order for ROI numbering, so callers needing stable numbers across
// re-encodes must not reorder.
func (st *Store) Structures() []*Structure {
	out := make([]*Structure, len(st.order))
	copy(out, st.order)
	return out
}

// Structure looks up a structure by name.
func (st *Store) Structure(name string) (*Structure, bool) {
	s, ok := st.byName[name]
	return s, ok
}

// Names returns the structure names in insertion order.
func (st *Store) Names() []string {
	out := make([]string, len(st.order))
	for i, s := range st.order {
		out[i] = s.name
	}
	return out
}

// AddStructure adds a new, empty structure. When color is nil the default
// table resolves one from the name. It returns false, leaving the store
// unchanged, when the name already exists; duplicates are never silently
// merged.
func (st *Store) AddStructure(name string, color *Color) bool {
	if _, exists := st.byName[name]; exists {
		st.log.Warn("structure already exists", "name", name)
		return false
	}
	c := Color{}
	if color != nil {
		c = *color
	} else {
		c = st.colors.Resolve(name)
	}
	s := &Structure{
		name:     name,
		color:    c,
		contours: make(map[int][]ClosedPolygon),
	}
	st.order = append(st.order, s)
	st.byName[name] = s
	st.current = name
	st.touch()
	return true
}

// RemoveStructure deletes a structure and all of its contours. It returns
// false for an unknown name.
func (st *Store) RemoveStructure(name string) bool {
	if _, ok := st.byName[name]; !ok {
		st.log.Warn("cannot remove unknown structure", "name", name)
		return false
	}
	delete(st.byName, name)
	for i, s := range st.order {
		if s.name == name {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	if st.current == name {
		st.current = ""
		if len(st.order) > 0 {
			st.current = st.order[0].name
		}
	}
	st.touch()
	return true
}

// SetStructureColor changes a structure's display color. It returns false
// for an unknown name.
func (st *Store) SetStructureColor(name string, color Color) bool {
	s, ok := st.byName[name]
	if !ok {
		st.log.Warn("cannot set color of unknown structure", "name", name)
		return false
	}
	s.color = color
	st.touch()
	return true
}

// SetCurrent selects the structure subsequent drawing operations target.
// It returns false for an unknown name.
func (st *Store) SetCurrent(name string) bool {
	if _, ok := st.byName[name]; !ok {
		st.log.Warn("cannot select unknown structure", "name", name)
		return false
	}
	st.current = name
	return true
}

// Current returns the currently selected structure name, or "" when the
// store is empty.
func (st *Store) Current() string { return st.current }

// AddContourPoints validates and appends one polygon to a structure's slice.
// Multiple disjoint polygons per slice are supported: an existing polygon on
// the slice is never overwritten. The ring is closed when isClosed is true.
// It returns false, leaving the store unchanged, on an unknown structure,
// an out-of-range slice index, or fewer than 3 distinct points.
func (st *Store) AddContourPoints(name string, sliceIdx int, points []raster.Point, isClosed bool) bool {
	s, ok := st.byName[name]
	if !ok {
		st.log.Warn("cannot add contour to unknown structure", "name", name)
		return false
	}
	if sliceIdx < 0 || sliceIdx >= st.numSlices {
		st.log.Warn("contour slice index out of range",
			"structure", name, "slice", sliceIdx, "numSlices", st.numSlices)
		return false
	}
	poly, err := NewClosedPolygon(points, isClosed)
	if err != nil {
		st.log.Warn("rejecting contour", "structure", name, "slice", sliceIdx, "error", err)
		return false
	}
	s.contours[sliceIdx] = append(s.contours[sliceIdx], poly)
	st.touch()
	return true
}

// RemoveContourFromSlice removes all polygons of a structure on one slice.
// It returns false when the structure is unknown or the slice holds no
// contour.
func (st *Store) RemoveContourFromSlice(name string, sliceIdx int) bool {
	s, ok := st.byName[name]
	if !ok {
		st.log.Warn("cannot remove contour from unknown structure", "name", name)
		return false
	}
	if _, ok := s.contours[sliceIdx]; !ok {
		st.log.Warn("no contour on slice", "structure", name, "slice", sliceIdx)
		return false
	}
	delete(s.contours, sliceIdx)
	st.touch()
	return true
}

// Mask rasterizes all populated slices of a structure into a dense mask
// congruent to the image volume. Slices are independent, so they are filled
// by a bounded worker pool. It fails for an unknown structure and for a
// structure without any contours.
func (st *Store) Mask(name string) (*volume.Mask, error) {
	s, ok := st.byName[name]
	if !ok {
		return nil, fmt.Errorf("structure %q: %w", name, ErrNotFound)
	}
	if s.Empty() {
		return nil, fmt.Errorf("structure %q has no contours: %w", name, ErrValidation)
	}

	mask := volume.NewMask(st.numSlices, st.height, st.width)
	indices := s.SliceIndices()

	jobs := make(chan int, len(indices))
	for _, idx := range indices {
		jobs <- idx
	}
	close(jobs)

	workers := st.workers
	if workers > len(indices) {
		workers = len(indices)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := raster.NewRasterizer(st.width, st.height, st.log)
			for idx := range jobs {
				polys := make([]raster.Polygon, 0, len(s.contours[idx]))
				for _, p := range s.contours[idx] {
					polys = append(polys, p.AsRasterPolygon())
				}
				copy(mask.SliceData(idx), r.Rasterize(polys))
			}
		}()
	}
	wg.Wait()

	return mask, nil
}

// Volume computes the structure volume in cubic millimeters by counting
// rasterized voxels and scaling by the voxel size. An existing structure
// without contours yields 0; an unknown name is an error.
func (st *Store) Volume(name string) (float64, error) {
	s, ok := st.byName[name]
	if !ok {
		return 0, fmt.Errorf("structure %q: %w", name, ErrNotFound)
	}
	if s.Empty() {
		return 0, nil
	}
	mask, err := st.Mask(name)
	if err != nil {
		return 0, err
	}
	voxel := st.geom.Spacing.X * st.geom.Spacing.Y * st.geom.Spacing.Z
	return float64(mask.Count()) * voxel, nil
}

// VolumeCm3 returns the structure volume in cubic centimeters.
func (st *Store) VolumeCm3(name string) (float64, error) {
	mm3, err := st.Volume(name)
	if err != nil {
		return 0, err
	}
	return mm3 / 1000.0, nil
}
