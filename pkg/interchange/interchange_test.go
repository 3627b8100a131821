package interchange

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rtcontour/pkg/contour"
	"rtcontour/pkg/raster"
	"rtcontour/pkg/volume"
)

func testParams() contour.Params {
	return contour.Params{
		NumSlices: 10,
		Height:    64,
		Width:     64,
		Geom: volume.Geometry{
			Spacing:   volume.Spacing{X: 1, Y: 1, Z: 2},
			Direction: volume.AxisAligned,
		},
	}
}

func populatedStore(t *testing.T) *contour.Store {
	t.Helper()
	st := contour.NewStore(testParams())
	st.Frame().FrameOfReferenceUID = "1.2.840.99.1"
	st.SetPatientInfo(contour.PatientMeta{PatientName: "DOE^JANE", PatientID: "42"})
	st.SetIsocenter([3]float64{0, 0, 4})

	st.AddStructure("PTV", &contour.Color{R: 1})
	st.AddContourPoints("PTV", 2, []raster.Point{{X: 5, Y: 5}, {X: 20, Y: 5}, {X: 20, Y: 20}, {X: 5, Y: 20}}, true)
	st.AddContourPoints("PTV", 2, []raster.Point{{X: 30, Y: 30}, {X: 40, Y: 30}, {X: 40, Y: 40}}, true)
	st.AddContourPoints("PTV", 3, []raster.Point{{X: 6, Y: 6}, {X: 18, Y: 6}, {X: 18, Y: 18}, {X: 6, Y: 18}}, true)

	st.AddStructure("SPINAL CORD", nil)
	st.AddContourPoints("SPINAL CORD", 5, []raster.Point{{X: 31, Y: 31}, {X: 34, Y: 31}, {X: 34, Y: 34}, {X: 31, Y: 34}}, true)
	return st
}

// TestJSONRoundTrip verifies that structures, contours, colors and session
// metadata survive a save/load cycle unchanged.
func TestJSONRoundTrip(t *testing.T) {
	st := populatedStore(t)
	path := filepath.Join(t.TempDir(), "contours.json")

	if err := SaveJSON(path, st); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}
	if st.Modified() {
		t.Error("Expected store clean after SaveJSON")
	}

	loaded, err := LoadJSON(path, testParams())
	if err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}

	if loaded.Frame().FrameOfReferenceUID != "1.2.840.99.1" {
		t.Errorf("Expected frame UID preserved, got %q", loaded.Frame().FrameOfReferenceUID)
	}
	if loaded.PatientInfo().PatientName != "DOE^JANE" {
		t.Errorf("Expected patient name preserved, got %q", loaded.PatientInfo().PatientName)
	}
	iso, ok := loaded.Isocenter()
	if !ok || iso != [3]float64{0, 0, 4} {
		t.Errorf("Expected isocenter [0 0 4], got %v (ok=%v)", iso, ok)
	}

	names := loaded.Names()
	if len(names) != 2 {
		t.Fatalf("Expected 2 structures, got %v", names)
	}

	ptv, ok := loaded.Structure("PTV")
	if !ok {
		t.Fatal("Expected PTV present after load")
	}
	if ptv.Color() != (contour.Color{R: 1}) {
		t.Errorf("Expected PTV color preserved, got %v", ptv.Color())
	}
	indices := ptv.SliceIndices()
	if len(indices) != 2 || indices[0] != 2 || indices[1] != 3 {
		t.Fatalf("Expected PTV slices [2 3], got %v", indices)
	}
	if n := len(ptv.PolygonsOnSlice(2)); n != 2 {
		t.Errorf("Expected 2 polygons on slice 2, got %d", n)
	}

	// Point-exact comparison of one polygon.
	orig, _ := st.Structure("PTV")
	origPts := orig.PolygonsOnSlice(3)[0].Points()
	loadPts := ptv.PolygonsOnSlice(3)[0].Points()
	if len(origPts) != len(loadPts) {
		t.Fatalf("Expected %d points, got %d", len(origPts), len(loadPts))
	}
	for i := range origPts {
		if origPts[i] != loadPts[i] {
			t.Errorf("Point %d differs: expected %v, got %v", i, origPts[i], loadPts[i])
		}
	}
}

// TestLoadJSONMalformed verifies that parse failures return a format error
// and no partial store.
func TestLoadJSONMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	st, err := LoadJSON(path, testParams())
	if !errors.Is(err, contour.ErrFormat) {
		t.Errorf("Expected ErrFormat, got %v", err)
	}
	if st != nil {
		t.Error("Expected no store on parse failure")
	}

	if _, err := LoadJSON(filepath.Join(t.TempDir(), "missing.json"), testParams()); err == nil {
		t.Error("Expected error for missing file")
	}
}

// TestExportCSV verifies one file per structure with filesystem-safe names
// and polygon-relative point indices.
func TestExportCSV(t *testing.T) {
	st := populatedStore(t)
	dir := t.TempDir()

	if err := ExportCSV(dir, st); err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	if st.Modified() {
		t.Error("Expected store clean after ExportCSV")
	}

	if _, err := os.Stat(filepath.Join(dir, "PTV.csv")); err != nil {
		t.Errorf("Expected PTV.csv: %v", err)
	}
	cordPath := filepath.Join(dir, "SPINAL_CORD.csv")
	if _, err := os.Stat(cordPath); err != nil {
		t.Fatalf("Expected SPINAL_CORD.csv: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "PTV.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Reading CSV failed: %v", err)
	}
	if len(records) < 2 {
		t.Fatal("Expected header plus data rows")
	}

	header := records[0]
	expected := []string{"SliceIndex", "PointIndex", "X", "Y"}
	for i, col := range expected {
		if header[i] != col {
			t.Errorf("Expected header column %q, got %q", col, header[i])
		}
	}

	// PointIndex restarts at 0 for each polygon: slice 2 holds two
	// polygons, so "2,0" must appear twice.
	restarts := 0
	for _, rec := range records[1:] {
		if rec[0] == "2" && rec[1] == "0" {
			restarts++
		}
	}
	if restarts != 2 {
		t.Errorf("Expected 2 polygon starts on slice 2, got %d", restarts)
	}
}
