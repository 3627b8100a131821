package contour

import (
	"hash/fnv"
	"math/rand"
	"strings"
)

// Color is an RGB triple with components in [0,1].
type Color struct {
	R, G, B float64
}

// DICOM returns the color scaled to the 0-255 integers RT-STRUCT uses for
// ROIDisplayColor.
func (c Color) DICOM() [3]int {
	round := func(v float64) int {
		n := int(v*255 + 0.5)
		if n < 0 {
			return 0
		}
		if n > 255 {
			return 255
		}
		return n
	}
	return [3]int{round(c.R), round(c.G), round(c.B)}
}

// ColorFromDICOM converts 0-255 display color components back to [0,1].
func ColorFromDICOM(r, g, b int) Color {
	return Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// colorEntry associates an organ-name substring with its conventional
// display color.
type colorEntry struct {
	substring string
	color     Color
}

// ColorTable resolves default display colors for new structures. It is an
// immutable value constructed once per store; lookups match case-insensitive
// substrings of the structure name in a fixed order, so the same name always
// resolves to the same color.
type ColorTable struct {
	entries []colorEntry
}

// DefaultColorTable returns the conventional organ color assignments used
// when a structure is added without an explicit color.
func DefaultColorTable() ColorTable {
	return ColorTable{entries: []colorEntry{
		{"BODY", Color{1.0, 1.0, 0.0}},        // yellow
		{"PTV", Color{1.0, 0.0, 0.0}},         // red
		{"CTV", Color{1.0, 0.5, 0.0}},         // orange
		{"GTV", Color{1.0, 0.0, 1.0}},         // magenta
		{"RECTUM", Color{0.5, 0.0, 0.5}},      // purple
		{"BLADDER", Color{1.0, 1.0, 0.0}},     // yellow
		{"HEART", Color{1.0, 0.0, 0.0}},       // red
		{"LUNG", Color{0.0, 0.5, 1.0}},        // light blue
		{"SPINAL CORD", Color{1.0, 1.0, 0.0}}, // yellow
		{"BRAIN", Color{0.5, 0.5, 0.5}},       // gray
		{"EYES", Color{0.0, 1.0, 1.0}},        // cyan
		{"PAROTID", Color{0.0, 1.0, 0.0}},     // green
		{"MANDIBLE", Color{0.5, 0.25, 0.0}},   // brown
	}}
}

// Resolve returns the default color for a structure name. Names matching no
// table entry get a pseudo-random color derived from the name itself, so
// repeated sessions assign the same fallback color to the same structure.
func (t ColorTable) Resolve(name string) Color {
	upper := strings.ToUpper(name)
	for _, e := range t.entries {
		if strings.Contains(upper, e.substring) {
			return e.color
		}
	}

	h := fnv.New64a()
	h.Write([]byte(upper))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	return Color{R: rng.Float64(), G: rng.Float64(), B: rng.Float64()}
}
