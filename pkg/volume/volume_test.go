package volume

import (
	"testing"
)

func testGeometry() Geometry {
	return Geometry{
		Spacing:   Spacing{X: 1, Y: 1, Z: 2},
		Origin:    Origin{X: -10, Y: -20, Z: 5},
		Direction: AxisAligned,
	}
}

// TestVolumeIndexing verifies the flat (Z,Y,X) row-major layout through
// At and Set.
func TestVolumeIndexing(t *testing.T) {
	v := NewVolume(2, 3, 4, testGeometry())

	if len(v.Data) != 2*3*4 {
		t.Fatalf("Expected %d voxels, got %d", 2*3*4, len(v.Data))
	}

	v.Set(1, 2, 3, 42.5)
	if got := v.At(1, 2, 3); got != 42.5 {
		t.Errorf("Expected 42.5 at (1,2,3), got %f", got)
	}

	// The same voxel in the flat layout.
	idx := 1*3*4 + 2*4 + 3
	if v.Data[idx] != 42.5 {
		t.Errorf("Expected flat index %d to hold 42.5, got %f", idx, v.Data[idx])
	}
}

// TestVolumeSlice verifies that Slice returns the right contiguous window
// and rejects out-of-range indices.
func TestVolumeSlice(t *testing.T) {
	v := NewVolume(3, 2, 2, testGeometry())
	v.Set(1, 0, 0, 7)
	v.Set(1, 1, 1, 9)

	slice, err := v.Slice(1)
	if err != nil {
		t.Fatalf("Slice(1) failed: %v", err)
	}
	if len(slice) != 4 {
		t.Fatalf("Expected slice of 4 values, got %d", len(slice))
	}
	if slice[0] != 7 || slice[3] != 9 {
		t.Errorf("Expected slice [7 _ _ 9], got %v", slice)
	}

	if _, err := v.Slice(3); err == nil {
		t.Error("Expected error for slice index 3 on depth-3 volume, got nil")
	}
	if _, err := v.Slice(-1); err == nil {
		t.Error("Expected error for negative slice index, got nil")
	}
}

// TestMaskSetClearCount verifies basic mask mutation and the voxel count.
func TestMaskSetClearCount(t *testing.T) {
	m := NewMask(2, 2, 2)

	if m.Count() != 0 {
		t.Errorf("Expected empty mask count 0, got %d", m.Count())
	}

	m.Set(0, 1, 1)
	m.Set(1, 0, 0)
	if !m.At(0, 1, 1) || !m.At(1, 0, 0) {
		t.Error("Expected set voxels to read back true")
	}
	if m.Count() != 2 {
		t.Errorf("Expected count 2, got %d", m.Count())
	}

	m.Clear(0, 1, 1)
	if m.At(0, 1, 1) {
		t.Error("Expected cleared voxel to read back false")
	}
	if m.Count() != 1 {
		t.Errorf("Expected count 1 after clear, got %d", m.Count())
	}
}

// TestMaskSetSlice verifies that SetSlice copies a whole slice and rejects
// mismatched lengths.
func TestMaskSetSlice(t *testing.T) {
	m := NewMask(2, 2, 3)

	data := []uint8{1, 0, 1, 0, 1, 0}
	if err := m.SetSlice(1, data); err != nil {
		t.Fatalf("SetSlice failed: %v", err)
	}
	if m.Count() != 3 {
		t.Errorf("Expected 3 set voxels, got %d", m.Count())
	}
	if !m.At(1, 0, 0) || !m.At(1, 1, 1) {
		t.Error("Expected voxels (1,0,0) and (1,1,1) to be set")
	}

	if err := m.SetSlice(0, []uint8{1, 2}); err == nil {
		t.Error("Expected error for short slice data, got nil")
	}
}

// TestFrameFromGeometry verifies that a uniform frame derives slice
// positions from origin and spacing.
func TestFrameFromGeometry(t *testing.T) {
	geom := testGeometry()
	frame := FrameFromGeometry("1.2.3.4", 4, geom)

	if frame.FrameOfReferenceUID != "1.2.3.4" {
		t.Errorf("Expected UID 1.2.3.4, got %s", frame.FrameOfReferenceUID)
	}
	if len(frame.SliceZ) != 4 {
		t.Fatalf("Expected 4 slice positions, got %d", len(frame.SliceZ))
	}

	expected := []float64{5, 7, 9, 11}
	for i, z := range expected {
		if frame.SliceZ[i] != z {
			t.Errorf("Expected slice %d at z=%f, got %f", i, z, frame.SliceZ[i])
		}
	}
}
