package contour

import "sort"

// Structure is one named region of interest: a display color plus a sparse
// map of slice index to the closed polygons drawn on that slice. Structures
// are owned by the Store that created them; all mutation goes through the
// store so dirty tracking stays accurate.
//
// A slice with no qualifying contour is absent from the map entirely, never
// present with an empty polygon set. Consumers must treat "absent slice" as
// "no structure on this slice".
type Structure struct {
	name     string
	color    Color
	contours map[int][]ClosedPolygon
}

// Name returns the structure name.
func (s *Structure) Name() string { return s.name }

// Color returns the display color.
func (s *Structure) Color() Color { return s.color }

// SliceIndices returns the populated slice indices in ascending order.
func (s *Structure) SliceIndices() []int {
	out := make([]int, 0, len(s.contours))
	for idx := range s.contours {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// PolygonsOnSlice returns the polygons stored on one slice. The returned
// slice is a copy; the polygons themselves are immutable.
func (s *Structure) PolygonsOnSlice(idx int) []ClosedPolygon {
	polys := s.contours[idx]
	out := make([]ClosedPolygon, len(polys))
	copy(out, polys)
	return out
}

// NumSlices returns the number of populated slices.
func (s *Structure) NumSlices() int { return len(s.contours) }

// Empty reports whether the structure has no contours at all. An empty
// structure is valid (just created) and contributes zero volume.
func (s *Structure) Empty() bool { return len(s.contours) == 0 }

// PatientMeta carries the patient and study identification exported into
// RT-STRUCT and JSON output. All fields are optional free-form DICOM strings.
type PatientMeta struct {
	PatientName       string `json:"PatientName,omitempty"`
	PatientID         string `json:"PatientID,omitempty"`
	PatientBirthDate  string `json:"PatientBirthDate,omitempty"`
	PatientSex        string `json:"PatientSex,omitempty"`
	StudyDescription  string `json:"StudyDescription,omitempty"`
	StudyDate         string `json:"StudyDate,omitempty"`
	StudyTime         string `json:"StudyTime,omitempty"`
	StudyInstanceUID  string `json:"StudyInstanceUID,omitempty"`
	SeriesDescription string `json:"SeriesDescription,omitempty"`
	SeriesInstanceUID string `json:"SeriesInstanceUID,omitempty"`
}
