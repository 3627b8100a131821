package contour

import (
	"testing"
)

// TestColorTableKnownOrgans verifies the conventional organ assignments,
// including case-insensitive substring matching.
func TestColorTableKnownOrgans(t *testing.T) {
	table := DefaultColorTable()

	cases := []struct {
		name     string
		expected Color
	}{
		{"BODY", Color{1, 1, 0}},
		{"PTV 70", Color{1, 0, 0}},
		{"ptv boost", Color{1, 0, 0}},
		{"Left Lung", Color{0, 0.5, 1}},
		{"Heart", Color{1, 0, 0}},
	}
	for _, c := range cases {
		if got := table.Resolve(c.name); got != c.expected {
			t.Errorf("Expected %q to resolve to %v, got %v", c.name, c.expected, got)
		}
	}
}

// TestColorTableFallbackDeterministic verifies that unknown names get a
// stable pseudo-random color rather than a fresh one per call.
func TestColorTableFallbackDeterministic(t *testing.T) {
	table := DefaultColorTable()

	a := table.Resolve("Femoral Head Lt")
	b := table.Resolve("Femoral Head Lt")
	if a != b {
		t.Errorf("Expected stable fallback color, got %v then %v", a, b)
	}

	other := table.Resolve("Femoral Head Rt")
	if a == other {
		t.Error("Expected different names to get different fallback colors")
	}

	for _, v := range []float64{a.R, a.G, a.B} {
		if v < 0 || v > 1 {
			t.Errorf("Expected fallback components in [0,1], got %v", a)
		}
	}
}

// TestColorDICOMRoundTrip verifies the 0-255 display color conversion.
func TestColorDICOMRoundTrip(t *testing.T) {
	c := Color{R: 1, G: 0.5, B: 0}

	d := c.DICOM()
	if d != [3]int{255, 128, 0} {
		t.Errorf("Expected [255 128 0], got %v", d)
	}

	back := ColorFromDICOM(d[0], d[1], d[2])
	const tol = 1.0 / 255
	if diff := back.R - c.R; diff > tol || diff < -tol {
		t.Errorf("Red channel off by more than 1/255: %v vs %v", back, c)
	}
	if diff := back.G - c.G; diff > tol || diff < -tol {
		t.Errorf("Green channel off by more than 1/255: %v vs %v", back, c)
	}
	if diff := back.B - c.B; diff > tol || diff < -tol {
		t.Errorf("Blue channel off by more than 1/255: %v vs %v", back, c)
	}
}

// TestColorDICOMClamps verifies out-of-range components clamp rather than
// wrap.
func TestColorDICOMClamps(t *testing.T) {
	if d := (Color{R: 1.5, G: -0.2, B: 0}).DICOM(); d != [3]int{255, 0, 0} {
		t.Errorf("Expected [255 0 0], got %v", d)
	}
}
