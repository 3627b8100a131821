// Package maskview renders structure masks to image files for visual QA:
// each axial slice of a mask becomes one grayscale image, optionally
// blended over the source intensity slice.
package maskview

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"rtcontour/pkg/volume"
)

// Viewer renders the slices of one mask, optionally against its source
// intensity volume.
type Viewer struct {
	mask *volume.Mask

	// vol is the optional backdrop; nil renders the mask alone.
	vol *volume.Volume
}

// NewViewer creates a viewer for a mask. vol may be nil.
func NewViewer(mask *volume.Mask, vol *volume.Volume) *Viewer {
	return &Viewer{mask: mask, vol: vol}
}

// ExtractSlice renders one axial slice. Mask pixels are drawn at full
// intensity; with a backdrop volume, background pixels show the windowed
// intensity at half brightness so the contour outline stays legible.
func (v *Viewer) ExtractSlice(z int) (image.Image, error) {
	if z < 0 || z >= v.mask.NZ {
		return nil, fmt.Errorf("slice %d exceeds depth %d", z, v.mask.NZ)
	}
	if v.vol != nil && (v.vol.NZ != v.mask.NZ || v.vol.NY != v.mask.NY || v.vol.NX != v.mask.NX) {
		return nil, fmt.Errorf("backdrop volume %dx%dx%d does not match mask %dx%dx%d",
			v.vol.NZ, v.vol.NY, v.vol.NX, v.mask.NZ, v.mask.NY, v.mask.NX)
	}

	img := image.NewGray16(image.Rect(0, 0, v.mask.NX, v.mask.NY))

	var lo, hi float64
	if v.vol != nil {
		lo, hi = math.Inf(1), math.Inf(-1)
		base := z * v.vol.NY * v.vol.NX
		for _, val := range v.vol.Data[base : base+v.vol.NY*v.vol.NX] {
			lo = math.Min(lo, val)
			hi = math.Max(hi, val)
		}
	}

	for y := 0; y < v.mask.NY; y++ {
		for x := 0; x < v.mask.NX; x++ {
			if v.mask.At(z, y, x) {
				img.SetGray16(x, y, color.Gray16{Y: 65535})
				continue
			}
			if v.vol != nil && hi > lo {
				norm := (v.vol.At(z, y, x) - lo) / (hi - lo)
				img.SetGray16(x, y, color.Gray16{Y: uint16(norm * 32767)})
			}
		}
	}
	return img, nil
}

// SaveSliceSequence writes every axial slice of the mask as a JPEG file
// named slice_NNNN.jpg under dir, creating the directory if needed.
func (v *Viewer) SaveSliceSequence(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for z := 0; z < v.mask.NZ; z++ {
		img, err := v.ExtractSlice(z)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("slice_%04d.jpg", z))
		if err := saveJPEG(path, img); err != nil {
			return fmt.Errorf("failed to save slice %d: %w", z, err)
		}
	}
	return nil
}

func saveJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}
