package contour

import (
	"errors"
	"math"
	"testing"

	"rtcontour/pkg/raster"
	"rtcontour/pkg/volume"
)

func testStore(nz, ny, nx int) *Store {
	return NewStore(Params{
		NumSlices: nz,
		Height:    ny,
		Width:     nx,
		Geom: volume.Geometry{
			Spacing:   volume.Spacing{X: 1, Y: 1, Z: 1},
			Origin:    volume.Origin{},
			Direction: volume.AxisAligned,
		},
	})
}

func square(x0, y0, x1, y1 float64) []raster.Point {
	return []raster.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}
}

// TestAddStructure verifies structure creation, duplicate rejection, and
// insertion-order listing.
func TestAddStructure(t *testing.T) {
	st := testStore(10, 64, 64)

	if !st.AddStructure("PTV", nil) {
		t.Fatal("Expected AddStructure to succeed")
	}
	if !st.AddStructure("BODY", nil) {
		t.Fatal("Expected second AddStructure to succeed")
	}
	if st.AddStructure("PTV", nil) {
		t.Error("Expected duplicate AddStructure to fail")
	}

	names := st.Names()
	if len(names) != 2 || names[0] != "PTV" || names[1] != "BODY" {
		t.Errorf("Expected insertion order [PTV BODY], got %v", names)
	}
	if st.Current() != "BODY" {
		t.Errorf("Expected current structure BODY, got %s", st.Current())
	}

	// Default color resolution from the organ table.
	s, ok := st.Structure("PTV")
	if !ok {
		t.Fatal("Expected PTV to exist")
	}
	if s.Color() != (Color{1, 0, 0}) {
		t.Errorf("Expected PTV default color red, got %v", s.Color())
	}
}

// TestRemoveStructure verifies removal and current-structure reassignment.
func TestRemoveStructure(t *testing.T) {
	st := testStore(10, 64, 64)
	st.AddStructure("A", nil)
	st.AddStructure("B", nil)
	st.SetCurrent("B")

	if !st.RemoveStructure("B") {
		t.Fatal("Expected RemoveStructure to succeed")
	}
	if st.Current() != "A" {
		t.Errorf("Expected current to fall back to A, got %s", st.Current())
	}
	if st.RemoveStructure("B") {
		t.Error("Expected removing a missing structure to fail")
	}

	if !st.RemoveStructure("A") {
		t.Fatal("Expected final RemoveStructure to succeed")
	}
	if st.Current() != "" {
		t.Errorf("Expected empty current, got %s", st.Current())
	}
}

// TestAddContourPoints verifies contour appending, closure, and rejection
// of invalid input without mutating the store.
func TestAddContourPoints(t *testing.T) {
	st := testStore(10, 64, 64)
	st.AddStructure("PTV", nil)
	st.MarkSaved()

	if !st.AddContourPoints("PTV", 3, square(5, 5, 20, 20), true) {
		t.Fatal("Expected AddContourPoints to succeed")
	}
	if !st.Modified() {
		t.Error("Expected store dirty after adding a contour")
	}

	s, _ := st.Structure("PTV")
	polys := s.PolygonsOnSlice(3)
	if len(polys) != 1 {
		t.Fatalf("Expected 1 polygon on slice 3, got %d", len(polys))
	}
	pts := polys[0].Points()
	if pts[0] != pts[len(pts)-1] {
		t.Error("Expected stored polygon to be closed")
	}

	// Second polygon on the same slice appends, never overwrites.
	if !st.AddContourPoints("PTV", 3, square(30, 30, 40, 40), true) {
		t.Fatal("Expected second contour on slice 3 to succeed")
	}
	if n := len(s.PolygonsOnSlice(3)); n != 2 {
		t.Errorf("Expected 2 polygons on slice 3, got %d", n)
	}

	// Invalid inputs leave the store unchanged.
	st.MarkSaved()
	if st.AddContourPoints("PTV", 10, square(0, 0, 5, 5), true) {
		t.Error("Expected out-of-range slice index to fail")
	}
	if st.AddContourPoints("PTV", 0, []raster.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}, true) {
		t.Error("Expected 2-point contour to fail")
	}
	if st.AddContourPoints("MISSING", 0, square(0, 0, 5, 5), true) {
		t.Error("Expected unknown structure to fail")
	}
	if st.Modified() {
		t.Error("Expected rejected contours to leave the store clean")
	}
	if s.NumSlices() != 1 {
		t.Errorf("Expected contours on 1 slice only, got %d", s.NumSlices())
	}
}

// TestRemoveContourFromSlice verifies slice-level contour removal.
func TestRemoveContourFromSlice(t *testing.T) {
	st := testStore(10, 64, 64)
	st.AddStructure("PTV", nil)
	st.AddContourPoints("PTV", 2, square(5, 5, 20, 20), true)

	if !st.RemoveContourFromSlice("PTV", 2) {
		t.Fatal("Expected RemoveContourFromSlice to succeed")
	}
	if st.RemoveContourFromSlice("PTV", 2) {
		t.Error("Expected removing an empty slice to fail")
	}

	s, _ := st.Structure("PTV")
	if !s.Empty() {
		t.Error("Expected structure empty after removal")
	}
}

// TestMask verifies rasterization of a structure into a dense mask and the
// error cases for unknown and empty structures.
func TestMask(t *testing.T) {
	st := testStore(5, 32, 32)
	st.AddStructure("PTV", nil)
	st.AddStructure("EMPTY", nil)
	st.AddContourPoints("PTV", 2, square(10, 10, 13, 13), true)

	mask, err := st.Mask("PTV")
	if err != nil {
		t.Fatalf("Mask failed: %v", err)
	}
	if mask.Count() != 16 {
		t.Errorf("Expected 16 voxels from a 4x4 square, got %d", mask.Count())
	}
	if !mask.At(2, 10, 10) || !mask.At(2, 13, 13) {
		t.Error("Expected square corners set on slice 2")
	}
	if mask.At(1, 10, 10) {
		t.Error("Expected neighboring slices empty")
	}

	if _, err := st.Mask("MISSING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown structure, got %v", err)
	}
	if _, err := st.Mask("EMPTY"); !errors.Is(err, ErrValidation) {
		t.Errorf("Expected ErrValidation for empty structure, got %v", err)
	}
}

// TestVolume verifies voxel-counted volume: full coverage of a
// 100x100x100 grid at 1mm spacing is exactly one liter.
func TestVolume(t *testing.T) {
	st := testStore(100, 100, 100)
	st.AddStructure("BODY", nil)
	for z := 0; z < 100; z++ {
		st.AddContourPoints("BODY", z, square(0, 0, 99, 99), true)
	}

	vol, err := st.Volume("BODY")
	if err != nil {
		t.Fatalf("Volume failed: %v", err)
	}
	if math.Abs(vol-1000000) > 1e-6 {
		t.Errorf("Expected 1000000 mm3, got %f", vol)
	}

	cm3, err := st.VolumeCm3("BODY")
	if err != nil {
		t.Fatalf("VolumeCm3 failed: %v", err)
	}
	if math.Abs(cm3-1000) > 1e-6 {
		t.Errorf("Expected 1000 cm3, got %f", cm3)
	}

	// An existing but empty structure has zero volume, not an error.
	st.AddStructure("EMPTY", nil)
	vol, err = st.Volume("EMPTY")
	if err != nil {
		t.Fatalf("Volume of empty structure failed: %v", err)
	}
	if vol != 0 {
		t.Errorf("Expected 0 volume for empty structure, got %f", vol)
	}

	if _, err := st.Volume("MISSING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestStatistics verifies the per-structure summary.
func TestStatistics(t *testing.T) {
	st := testStore(10, 32, 32)
	st.AddStructure("PTV", nil)
	st.AddContourPoints("PTV", 1, square(0, 0, 9, 9), true)
	st.AddContourPoints("PTV", 2, square(0, 0, 9, 9), true)
	st.AddStructure("EMPTY", nil)

	stats := st.Statistics()
	if len(stats) != 2 {
		t.Fatalf("Expected stats for 2 structures, got %d", len(stats))
	}

	ptv := stats["PTV"]
	if ptv.SliceCount != 2 {
		t.Errorf("Expected 2 populated slices, got %d", ptv.SliceCount)
	}
	if len(ptv.Slices) != 2 || ptv.Slices[0] != 1 || ptv.Slices[1] != 2 {
		t.Errorf("Expected slices [1 2], got %v", ptv.Slices)
	}
	if ptv.VolumeMm3 != 200 {
		t.Errorf("Expected 200 mm3 from two 10x10 squares, got %f", ptv.VolumeMm3)
	}
	if stats["EMPTY"].VolumeMm3 != 0 {
		t.Errorf("Expected 0 volume for empty structure, got %f", stats["EMPTY"].VolumeMm3)
	}
}

// TestSaveState verifies the clean/dirty lifecycle.
func TestSaveState(t *testing.T) {
	st := testStore(5, 16, 16)
	if st.Modified() {
		t.Error("Expected a new store to start clean")
	}

	st.AddStructure("A", nil)
	if !st.Modified() {
		t.Error("Expected dirty after AddStructure")
	}

	st.MarkSaved()
	if st.Modified() {
		t.Error("Expected clean after MarkSaved")
	}

	st.SetStructureColor("A", Color{0, 1, 0})
	if !st.Modified() {
		t.Error("Expected dirty after SetStructureColor")
	}
}

// TestIsocenterAndPatient verifies the session metadata carried by the
// store.
func TestIsocenterAndPatient(t *testing.T) {
	st := testStore(5, 16, 16)

	if _, ok := st.Isocenter(); ok {
		t.Error("Expected no isocenter on a fresh store")
	}
	st.SetIsocenter([3]float64{1.5, -2, 30})
	iso, ok := st.Isocenter()
	if !ok || iso != [3]float64{1.5, -2, 30} {
		t.Errorf("Expected isocenter [1.5 -2 30], got %v (ok=%v)", iso, ok)
	}

	st.MarkSaved()
	st.SetPatientInfo(PatientMeta{PatientName: "DOE^JANE", PatientID: "42"})
	if !st.Modified() {
		t.Error("Expected dirty after SetPatientInfo")
	}
	if st.PatientInfo().PatientName != "DOE^JANE" {
		t.Errorf("Expected patient name DOE^JANE, got %s", st.PatientInfo().PatientName)
	}
}
