// Package rtstruct encodes a contour store to DICOM RT Structure Set bytes
// and decodes RT-STRUCT bytes back into a store. The wire format is Explicit
// VR Little Endian; geometry is converted between pixel and world space
// through the transform package against the store's reference frame.
package rtstruct

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// RT Structure Set Storage SOP class, PS3.6 annex A.
const (
	SOPClassRTStructureSet      = "1.2.840.10008.5.1.4.1.1.481.3"
	TransferSyntaxExplicitVRLE  = "1.2.840.10008.1.2.1"
	modalityRTStruct            = "RTSTRUCT"
	contourGeometryClosedPlanar = "CLOSED_PLANAR"
	roiGenerationManual         = "MANUAL"
)

// mustNewElement builds a DICOM element from statically well-formed values.
// It only panics on programmer error (a value type the library cannot map
// to the tag's VR), never on runtime data.
func mustNewElement(t tag.Tag, data interface{}) *dicom.Element {
	e, err := dicom.NewElement(t, data)
	if err != nil {
		panic(fmt.Sprintf("rtstruct: building element %v: %v", t, err))
	}
	return e
}

// findInItem scans a sequence item's elements for a tag. Returns nil when
// absent.
func findInItem(elems []*dicom.Element, t tag.Tag) *dicom.Element {
	for _, e := range elems {
		if e.Tag == t {
			return e
		}
	}
	return nil
}

// stringsOf extracts a string-valued element, tolerating single values.
func stringsOf(e *dicom.Element) []string {
	if e == nil {
		return nil
	}
	if v, ok := e.Value.GetValue().([]string); ok {
		return v
	}
	return nil
}

// firstString returns the first string value of an element, or "".
func firstString(e *dicom.Element) string {
	v := stringsOf(e)
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// intsOf extracts integer values, accepting both the native []int decoding
// and IS values left as strings.
func intsOf(e *dicom.Element) []int {
	if e == nil {
		return nil
	}
	switch v := e.Value.GetValue().(type) {
	case []int:
		return v
	case []string:
		out := make([]int, 0, len(v))
		for _, s := range v {
			var n int
			if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

// floatsOf extracts floating-point values, accepting both the native
// []float64 decoding and DS values left as strings.
func floatsOf(e *dicom.Element) []float64 {
	if e == nil {
		return nil
	}
	switch v := e.Value.GetValue().(type) {
	case []float64:
		return v
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			var f float64
			if _, err := fmt.Sscanf(s, "%g", &f); err == nil {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

// sequenceItems returns the items of a sequence element, or nil when the
// element is absent or not a sequence.
func sequenceItems(e *dicom.Element) []*dicom.SequenceItemValue {
	if e == nil {
		return nil
	}
	if v, ok := e.Value.GetValue().([]*dicom.SequenceItemValue); ok {
		return v
	}
	return nil
}

// itemElements unwraps one sequence item into its elements.
func itemElements(item *dicom.SequenceItemValue) []*dicom.Element {
	if v, ok := item.GetValue().([]*dicom.Element); ok {
		return v
	}
	return nil
}
