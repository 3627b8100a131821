// Package segmentation produces binary masks from an intensity volume:
// range thresholding, seeded region growing, gradient watershed, and the
// heuristic body/lungs/bones extractors used for CT auto-contouring. Masks
// feed the vectorizer to populate a contour store, which then owns the
// canonical representation.
package segmentation

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"

	"rtcontour/pkg/contour"
	"rtcontour/pkg/raster"
	"rtcontour/pkg/volume"
)

// Unbounded marks one side of an intensity window as open. Pass
// -Unbounded for an open minimum and +Unbounded for an open maximum.
var Unbounded = math.Inf(1)

// Params configures a segmentation engine.
type Params struct {
	// Volume is the source intensity volume; for CT the values are HU.
	Volume *volume.Volume

	// Frame ties produced contours to the image geometry when exporting.
	// Nil derives a uniform frame from the volume geometry.
	Frame *volume.ReferenceFrame

	// Patient is carried into stores built by ExportToStore.
	Patient contour.PatientMeta

	// Workers bounds per-slice parallelism of the auto extractors. Zero or
	// negative means all available cores.
	Workers int

	// Log receives warnings. Nil falls back to slog.Default().
	Log *slog.Logger
}

// Engine holds an intensity volume plus a registry of named masks produced
// by the segmentation operations. Like the contour store it is single-owner:
// no internal locking.
type Engine struct {
	vol     *volume.Volume
	frame   *volume.ReferenceFrame
	patient contour.PatientMeta

	masks map[string]*volume.Mask
	order []string

	workers int
	log     *slog.Logger
}

// NewEngine creates an engine over the given volume.
func NewEngine(p Params) *Engine {
	if p.Log == nil {
		p.Log = slog.Default()
	}
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}
	if p.Frame == nil {
		p.Frame = volume.FrameFromGeometry("", p.Volume.NZ, p.Volume.Geom)
	}
	return &Engine{
		vol:     p.Volume,
		frame:   p.Frame,
		patient: p.Patient,
		masks:   make(map[string]*volume.Mask),
		workers: p.Workers,
		log:     p.Log,
	}
}

// AddMask registers a mask under a name, replacing any previous mask of the
// same name. A nil mask registers an empty one.
func (e *Engine) AddMask(name string, mask *volume.Mask) *volume.Mask {
	if mask == nil {
		mask = volume.NewMask(e.vol.NZ, e.vol.NY, e.vol.NX)
	}
	if _, seen := e.masks[name]; !seen {
		e.order = append(e.order, name)
	}
	e.masks[name] = mask
	return mask
}

// Mask returns a registered mask by name.
func (e *Engine) Mask(name string) (*volume.Mask, bool) {
	m, ok := e.masks[name]
	return m, ok
}

// MaskNames returns the registered mask names in insertion order.
func (e *Engine) MaskNames() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Threshold builds a mask of all voxels whose intensity lies in [min,max].
// Pass -Unbounded / Unbounded to leave a side open.
func (e *Engine) Threshold(name string, min, max float64) *volume.Mask {
	mask := volume.NewMask(e.vol.NZ, e.vol.NY, e.vol.NX)
	for i, v := range e.vol.Data {
		if v >= min && v <= max {
			mask.Data[i] = 1
		}
	}
	return e.AddMask(name, mask)
}

// ThresholdSlice applies the range predicate to a single axial slice,
// updating (or creating) the named mask in place on that slice only.
func (e *Engine) ThresholdSlice(name string, sliceIdx int, min, max float64) (*volume.Mask, error) {
	if sliceIdx < 0 || sliceIdx >= e.vol.NZ {
		return nil, fmt.Errorf("slice index %d out of range [0,%d)", sliceIdx, e.vol.NZ)
	}
	mask, ok := e.masks[name]
	if !ok {
		mask = e.AddMask(name, nil)
	}
	base := sliceIdx * e.vol.NY * e.vol.NX
	dst := mask.SliceData(sliceIdx)
	for i := range dst {
		if v := e.vol.Data[base+i]; v >= min && v <= max {
			dst[i] = 1
		} else {
			dst[i] = 0
		}
	}
	return mask, nil
}

// ManualContour rasterizes caller-supplied polygon points into the named
// mask on one slice, the drawing path for hand-drawn contours.
func (e *Engine) ManualContour(name string, sliceIdx int, points []raster.Point) (*volume.Mask, error) {
	if sliceIdx < 0 || sliceIdx >= e.vol.NZ {
		return nil, fmt.Errorf("slice index %d out of range [0,%d)", sliceIdx, e.vol.NZ)
	}
	mask, ok := e.masks[name]
	if !ok {
		mask = e.AddMask(name, nil)
	}
	r := raster.NewRasterizer(e.vol.NX, e.vol.NY, e.log)
	copy(mask.SliceData(sliceIdx), r.Rasterize([]raster.Polygon{raster.Polygon(points)}))
	return mask, nil
}

// Seed is a (Z,Y,X) voxel index a region grows from.
type Seed struct {
	Z, Y, X int
}

// RegionGrowing grows an intensity-windowed region from each seed and unions
// the results into a mask. Growth is a per-slice 2D connected-component
// flood restricted to the window: a seed only claims pixels on its own
// slice, never full 3D connectivity.
//
// Pass NaN for min or max to derive the window from the mean seed intensity
// (mean-100 to mean+100).
func (e *Engine) RegionGrowing(name string, seeds []Seed, min, max float64) (*volume.Mask, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("region growing needs at least one seed")
	}
	for _, s := range seeds {
		if s.Z < 0 || s.Z >= e.vol.NZ || s.Y < 0 || s.Y >= e.vol.NY || s.X < 0 || s.X >= e.vol.NX {
			return nil, fmt.Errorf("seed (%d,%d,%d) outside volume bounds", s.Z, s.Y, s.X)
		}
	}

	if math.IsNaN(min) || math.IsNaN(max) {
		intensities := make([]float64, len(seeds))
		for i, s := range seeds {
			intensities[i] = e.vol.At(s.Z, s.Y, s.X)
		}
		mean := stat.Mean(intensities, nil)
		if math.IsNaN(min) {
			min = mean - 100
		}
		if math.IsNaN(max) {
			max = mean + 100
		}
	}

	mask := volume.NewMask(e.vol.NZ, e.vol.NY, e.vol.NX)
	w, h := e.vol.NX, e.vol.NY
	thresh := make([]uint8, w*h)

	for _, s := range seeds {
		base := s.Z * w * h
		for i := range thresh {
			if v := e.vol.Data[base+i]; v >= min && v <= max {
				thresh[i] = 1
			} else {
				thresh[i] = 0
			}
		}
		if thresh[s.Y*w+s.X] == 0 {
			e.log.Warn("region growing seed outside intensity window",
				"seed", [3]int{s.Z, s.Y, s.X}, "min", min, "max", max)
			continue
		}
		labels, _ := raster.LabelComponents(thresh, w, h)
		seedLabel := labels[s.Y*w+s.X]
		dst := mask.SliceData(s.Z)
		for i, l := range labels {
			if l == seedLabel {
				dst[i] = 1
			}
		}
	}

	return e.AddMask(name, mask), nil
}

// AutoBody extracts the external body contour: per slice, the largest
// component above the air/tissue threshold, hole-filled, optionally grown by
// a physical margin converted to pixel radii through the voxel spacing.
func (e *Engine) AutoBody(name string, threshold float64, marginMM float64) *volume.Mask {
	mask := volume.NewMask(e.vol.NZ, e.vol.NY, e.vol.NX)
	w, h := e.vol.NX, e.vol.NY

	var kernel []bool
	var kw, kh int
	if marginMM > 0 {
		rx := int(math.Round(marginMM / e.vol.Geom.Spacing.X))
		ry := int(math.Round(marginMM / e.vol.Geom.Spacing.Y))
		if rx > 0 && ry > 0 {
			kernel, kw, kh = ellipseKernel(rx, ry)
		}
	}

	e.forEachSlice(func(z int) {
		base := z * w * h
		slice := make([]uint8, w*h)
		for i := range slice {
			if e.vol.Data[base+i] > threshold {
				slice[i] = 1
			}
		}
		slice = keepLargestComponents(slice, w, h, 1)
		slice = fillSmallHoles(slice, w, h, 1000)
		if kernel != nil {
			slice = dilate(slice, w, h, kernel, kw, kh)
		}
		copy(mask.SliceData(z), slice)
	})

	return e.AddMask(name, mask)
}

// AutoLungs extracts the lungs on CT: per slice, voxels below the air
// threshold, speckle-opened and pruned of regions under 100 pixels, reduced
// to at most the two largest components (left and right lung). Components
// touching the top border are dropped when removeTrachea is set, and
// sub-500-pixel cavities (vessels) are filled when fillVessels is set.
func (e *Engine) AutoLungs(name string, threshold float64, removeTrachea, fillVessels bool) *volume.Mask {
	mask := volume.NewMask(e.vol.NZ, e.vol.NY, e.vol.NX)
	w, h := e.vol.NX, e.vol.NY
	kernel, kw, kh := box3()

	e.forEachSlice(func(z int) {
		base := z * w * h
		slice := make([]uint8, w*h)
		for i := range slice {
			if e.vol.Data[base+i] < threshold {
				slice[i] = 1
			}
		}
		slice = open(slice, w, h, kernel, kw, kh)
		slice = removeSmallComponents(slice, w, h, 100)
		if removeTrachea {
			slice = removeTopBorderComponents(slice, w, h)
		}
		slice = keepLargestComponents(slice, w, h, 2)
		if fillVessels {
			slice = fillSmallHoles(slice, w, h, 500)
		}
		copy(mask.SliceData(z), slice)
	})

	return e.AddMask(name, mask)
}

// AutoBones extracts bone on CT: a simple high threshold with a 3x3 opening
// per slice to drop speckle.
func (e *Engine) AutoBones(name string, threshold float64) *volume.Mask {
	mask := volume.NewMask(e.vol.NZ, e.vol.NY, e.vol.NX)
	w, h := e.vol.NX, e.vol.NY
	kernel, kw, kh := box3()

	e.forEachSlice(func(z int) {
		base := z * w * h
		slice := make([]uint8, w*h)
		for i := range slice {
			if e.vol.Data[base+i] > threshold {
				slice[i] = 1
			}
		}
		copy(mask.SliceData(z), open(slice, w, h, kernel, kw, kh))
	})

	return e.AddMask(name, mask)
}

// VolumeCm3 returns the volume of a registered mask in cubic centimeters.
func (e *Engine) VolumeCm3(name string) (float64, error) {
	mask, ok := e.masks[name]
	if !ok {
		return 0, fmt.Errorf("mask %q: %w", name, contour.ErrNotFound)
	}
	sp := e.vol.Geom.Spacing
	return float64(mask.Count()) * sp.X * sp.Y * sp.Z / 1000.0, nil
}

// ExportToStore vectorizes every registered mask into a contour store. Each
// mask becomes one structure; every external contour on a slice becomes its
// own polygon, and slices without any component stay absent from the
// structure's contour map. Colors come from the optional per-name map,
// falling back to the store's default table.
func (e *Engine) ExportToStore(colors map[string]contour.Color) (*contour.Store, error) {
	store := contour.NewStore(contour.Params{
		NumSlices: e.vol.NZ,
		Height:    e.vol.NY,
		Width:     e.vol.NX,
		Geom:      e.vol.Geom,
		Frame:     e.frame,
		Workers:   e.workers,
		Log:       e.log,
	})
	store.SetPatientInfo(e.patient)

	w, h := e.vol.NX, e.vol.NY
	for _, name := range e.order {
		mask := e.masks[name]
		var c *contour.Color
		if col, ok := colors[name]; ok {
			c = &col
		}
		if !store.AddStructure(name, c) {
			return nil, fmt.Errorf("duplicate structure %q during export", name)
		}
		for z := 0; z < mask.NZ; z++ {
			slice := mask.SliceData(z)
			empty := true
			for _, v := range slice {
				if v != 0 {
					empty = false
					break
				}
			}
			if empty {
				continue
			}
			for _, poly := range raster.Vectorize(slice, w, h) {
				if !store.AddContourPoints(name, z, poly, true) {
					e.log.Warn("skipping degenerate traced contour",
						"structure", name, "slice", z, "points", len(poly))
				}
			}
		}
	}
	return store, nil
}

// forEachSlice runs fn for every axial slice index on a bounded worker pool.
// Slices are independent in every extractor, so results do not depend on
// scheduling.
func (e *Engine) forEachSlice(fn func(z int)) {
	jobs := make(chan int, e.vol.NZ)
	for z := 0; z < e.vol.NZ; z++ {
		jobs <- z
	}
	close(jobs)

	workers := e.workers
	if workers > e.vol.NZ {
		workers = e.vol.NZ
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for z := range jobs {
				fn(z)
			}
		}()
	}
	wg.Wait()
}
