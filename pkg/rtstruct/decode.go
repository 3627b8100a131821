package rtstruct

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"rtcontour/pkg/contour"
	"rtcontour/pkg/raster"
	"rtcontour/pkg/transform"
)

// Decode parses RT-STRUCT bytes into a fresh contour store bound to the
// image volume described by params (dimensions, geometry, reference frame).
//
// Decode is atomic: structures are accumulated in a store that is only
// returned once the whole dataset has parsed, so a mid-parse failure never
// yields a partially populated result. A wrong modality or a missing frame
// of reference UID is fatal; individual malformed contour items (length not
// a multiple of 3, fewer than 3 points, unresolvable z) are skipped with a
// warning and do not abort the decode.
func Decode(data []byte, params contour.Params) (*contour.Store, error) {
	log := params.Log
	if log == nil {
		log = slog.Default()
	}

	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return nil, fmt.Errorf("parsing DICOM: %v: %w", err, contour.ErrFormat)
	}

	if modality := elementString(&ds, tag.Modality); modality != modalityRTStruct {
		return nil, fmt.Errorf("modality %q is not %s: %w", modality, modalityRTStruct, contour.ErrFormat)
	}

	frameUID := frameOfReferenceUID(&ds)
	if frameUID == "" {
		return nil, fmt.Errorf("missing frame of reference UID: %w", contour.ErrFormat)
	}

	roiEl, err := ds.FindElementByTag(tag.StructureSetROISequence)
	if err != nil {
		return nil, fmt.Errorf("missing StructureSetROISequence: %w", contour.ErrFormat)
	}
	contourEl, err := ds.FindElementByTag(tag.ROIContourSequence)
	if err != nil {
		return nil, fmt.Errorf("missing ROIContourSequence: %w", contour.ErrFormat)
	}

	// ROINumber -> ROIName from the structure set ROI sequence.
	names := make(map[int]string)
	for _, item := range sequenceItems(roiEl) {
		elems := itemElements(item)
		nums := intsOf(findInItem(elems, tag.ROINumber))
		name := firstString(findInItem(elems, tag.ROIName))
		if len(nums) == 0 || name == "" {
			log.Warn("skipping ROI entry without number or name")
			continue
		}
		names[nums[0]] = name
	}

	if params.Frame != nil && params.Frame.FrameOfReferenceUID == "" {
		params.Frame.FrameOfReferenceUID = frameUID
	}
	store := contour.NewStore(params)
	if store.Frame().FrameOfReferenceUID == "" {
		store.Frame().FrameOfReferenceUID = frameUID
	}
	tr := transform.New(store.Geometry(), store.Frame())

	store.SetPatientInfo(patientMeta(&ds))

	for _, item := range sequenceItems(contourEl) {
		elems := itemElements(item)

		refNums := intsOf(findInItem(elems, tag.ReferencedROINumber))
		if len(refNums) == 0 {
			log.Warn("skipping ROI contour entry without referenced ROI number")
			continue
		}
		name, ok := names[refNums[0]]
		if !ok {
			log.Warn("skipping contour for unknown ROI number", "roiNumber", refNums[0])
			continue
		}

		var color *contour.Color
		if rgb := intsOf(findInItem(elems, tag.ROIDisplayColor)); len(rgb) >= 3 {
			c := contour.ColorFromDICOM(rgb[0], rgb[1], rgb[2])
			color = &c
		}
		if !store.AddStructure(name, color) {
			log.Warn("duplicate ROI name in structure set", "name", name)
		}

		for _, ci := range sequenceItems(findInItem(elems, tag.ContourSequence)) {
			celems := itemElements(ci)
			decodeContourItem(store, tr, name, celems, log)
		}
	}

	store.MarkSaved()
	return store, nil
}

// ImportFile reads and decodes an RT-STRUCT file.
func ImportFile(path string, params contour.Params) (*contour.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RT-STRUCT file: %w", err)
	}
	return Decode(data, params)
}

// decodeContourItem converts one ContourSequence item into a polygon and
// appends it to the structure's slice, never overwriting existing polygons.
// Malformed items are logged and dropped.
func decodeContourItem(store *contour.Store, tr *transform.Transformer, name string, elems []*dicom.Element, log *slog.Logger) {
	data := floatsOf(findInItem(elems, tag.ContourData))
	if len(data) == 0 || len(data)%3 != 0 {
		log.Warn("skipping contour item with malformed ContourData",
			"structure", name, "values", len(data))
		return
	}
	if len(data)/3 < 3 {
		log.Warn("skipping contour item with fewer than 3 points",
			"structure", name, "points", len(data)/3)
		return
	}

	// The slice is resolved from the first point's z; CLOSED_PLANAR
	// contours lie in a single axial plane.
	sliceIdx, err := tr.SliceIndexFromZ(data[2])
	if err != nil {
		log.Warn("skipping contour item outside volume", "structure", name, "z", data[2], "error", err)
		return
	}

	points := make([]raster.Point, 0, len(data)/3)
	for i := 0; i+2 < len(data); i += 3 {
		x, y, _, err := tr.WorldToPixel(data[i], data[i+1], data[i+2])
		if err != nil {
			log.Warn("skipping contour item with unresolvable point",
				"structure", name, "z", data[i+2], "error", err)
			return
		}
		points = append(points, raster.Point{X: x, Y: y})
	}

	if !store.AddContourPoints(name, sliceIdx, points, true) {
		log.Warn("dropping invalid contour item", "structure", name, "slice", sliceIdx)
	}
}

// frameOfReferenceUID pulls the frame UID from the referenced frame
// sequence, falling back to the top-level attribute.
func frameOfReferenceUID(ds *dicom.Dataset) string {
	if el, err := ds.FindElementByTag(tag.ReferencedFrameOfReferenceSequence); err == nil {
		for _, item := range sequenceItems(el) {
			if uid := firstString(findInItem(itemElements(item), tag.FrameOfReferenceUID)); uid != "" {
				return uid
			}
		}
	}
	return elementString(ds, tag.FrameOfReferenceUID)
}

// elementString returns the first string of a top-level element, or "".
func elementString(ds *dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	return firstString(el)
}

// patientMeta extracts the patient and study identification carried by the
// structure set.
func patientMeta(ds *dicom.Dataset) contour.PatientMeta {
	return contour.PatientMeta{
		PatientName:       elementString(ds, tag.PatientName),
		PatientID:         elementString(ds, tag.PatientID),
		PatientBirthDate:  elementString(ds, tag.PatientBirthDate),
		PatientSex:        elementString(ds, tag.PatientSex),
		StudyDescription:  elementString(ds, tag.StudyDescription),
		StudyDate:         elementString(ds, tag.StudyDate),
		StudyTime:         elementString(ds, tag.StudyTime),
		StudyInstanceUID:  elementString(ds, tag.StudyInstanceUID),
		SeriesDescription: elementString(ds, tag.SeriesDescription),
		SeriesInstanceUID: elementString(ds, tag.SeriesInstanceUID),
	}
}
