package rtstruct

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"rtcontour/internal/dicomuid"
	"rtcontour/pkg/contour"
	"rtcontour/pkg/transform"
)

// EncodeOptions tunes the identifying attributes of an encode. The zero
// value generates fresh SOP and series instance UIDs and default labels.
type EncodeOptions struct {
	// SOPInstanceUID and SeriesInstanceUID override the generated UIDs,
	// for callers that must re-emit a byte-stable object.
	SOPInstanceUID    string
	SeriesInstanceUID string

	// Label and Name fill StructureSetLabel/StructureSetName.
	Label string
	Name  string

	// Time stamps StructureSetDate/Time; the zero value means now.
	Time time.Time
}

// Encode serializes the store into DICOM RT-STRUCT bytes.
//
// ROI numbering follows the store's insertion order (1-based); callers that
// need stable numbers across re-encodes must preserve that order. Contour
// points are converted to world-space millimeters against the store's
// geometry and reference frame. On success the store transitions to Clean.
func Encode(store *contour.Store, opts *EncodeOptions) ([]byte, error) {
	if opts == nil {
		opts = &EncodeOptions{}
	}
	if len(store.Structures()) == 0 {
		return nil, fmt.Errorf("store has no structures to encode: %w", contour.ErrValidation)
	}
	frame := store.Frame()
	if frame.FrameOfReferenceUID == "" {
		return nil, fmt.Errorf("store has no frame of reference UID: %w", contour.ErrValidation)
	}

	sopInstanceUID := opts.SOPInstanceUID
	if sopInstanceUID == "" {
		sopInstanceUID = dicomuid.New()
	}
	seriesUID := opts.SeriesInstanceUID
	if seriesUID == "" {
		seriesUID = dicomuid.New()
	}
	label := opts.Label
	if label == "" {
		label = "rtcontour"
	}
	name := opts.Name
	if name == "" {
		name = "rtcontour structure set"
	}
	stamp := opts.Time
	if stamp.IsZero() {
		stamp = time.Now()
	}

	tr := transform.New(store.Geometry(), frame)
	meta := store.PatientInfo()

	elements := []*dicom.Element{
		// File meta group; the writer emits these ahead of the dataset.
		mustNewElement(tag.MediaStorageSOPClassUID, []string{SOPClassRTStructureSet}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{sopInstanceUID}),
		mustNewElement(tag.TransferSyntaxUID, []string{TransferSyntaxExplicitVRLE}),

		mustNewElement(tag.SOPClassUID, []string{SOPClassRTStructureSet}),
		mustNewElement(tag.SOPInstanceUID, []string{sopInstanceUID}),
		mustNewElement(tag.Modality, []string{modalityRTStruct}),
		mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
		mustNewElement(tag.SeriesDescription, []string{"RT Structure Set"}),
		mustNewElement(tag.StructureSetLabel, []string{label}),
		mustNewElement(tag.StructureSetName, []string{name}),
		mustNewElement(tag.StructureSetDate, []string{stamp.Format("20060102")}),
		mustNewElement(tag.StructureSetTime, []string{stamp.Format("150405")}),
		mustNewElement(tag.FrameOfReferenceUID, []string{frame.FrameOfReferenceUID}),
	}
	elements = append(elements, patientElements(meta)...)
	elements = append(elements, referencedFrameSequence(frame.FrameOfReferenceUID, meta))

	roiSeq, contourSeq, err := roiSequences(store, tr)
	if err != nil {
		return nil, err
	}
	elements = append(elements, roiSeq, contourSeq)

	// DICOM datasets are written in ascending tag order.
	sort.Slice(elements, func(i, j int) bool {
		a, b := elements[i].Tag, elements[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	var buf bytes.Buffer
	if err := dicom.Write(&buf, dicom.Dataset{Elements: elements}); err != nil {
		return nil, fmt.Errorf("writing RT-STRUCT dataset: %w", err)
	}

	store.MarkSaved()
	return buf.Bytes(), nil
}

// SaveFile encodes the store and writes the bytes to path.
func SaveFile(path string, store *contour.Store, opts *EncodeOptions) error {
	data, err := Encode(store, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing RT-STRUCT file: %w", err)
	}
	return nil
}

// patientElements maps the non-empty patient metadata fields to elements.
func patientElements(meta contour.PatientMeta) []*dicom.Element {
	var out []*dicom.Element
	add := func(t tag.Tag, v string) {
		if v != "" {
			out = append(out, mustNewElement(t, []string{v}))
		}
	}
	add(tag.PatientName, meta.PatientName)
	add(tag.PatientID, meta.PatientID)
	add(tag.PatientBirthDate, meta.PatientBirthDate)
	add(tag.PatientSex, meta.PatientSex)
	add(tag.StudyDescription, meta.StudyDescription)
	add(tag.StudyDate, meta.StudyDate)
	add(tag.StudyTime, meta.StudyTime)
	add(tag.StudyInstanceUID, meta.StudyInstanceUID)
	return out
}

// referencedFrameSequence links the structure set to the source image
// series: ReferencedFrameOfReferenceSequence > RTReferencedStudySequence >
// RTReferencedSeriesSequence. Missing study/series UIDs are generated so the
// linkage stays structurally complete.
func referencedFrameSequence(frameUID string, meta contour.PatientMeta) *dicom.Element {
	studyUID := meta.StudyInstanceUID
	if studyUID == "" {
		studyUID = dicomuid.New()
	}
	seriesUID := meta.SeriesInstanceUID
	if seriesUID == "" {
		seriesUID = dicomuid.New()
	}

	seriesItem := []*dicom.Element{
		mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
	}
	studyItem := []*dicom.Element{
		mustNewElement(tag.ReferencedSOPInstanceUID, []string{studyUID}),
		mustNewElement(tag.RTReferencedSeriesSequence, [][]*dicom.Element{seriesItem}),
	}
	frameItem := []*dicom.Element{
		mustNewElement(tag.FrameOfReferenceUID, []string{frameUID}),
		mustNewElement(tag.RTReferencedStudySequence, [][]*dicom.Element{studyItem}),
	}
	return mustNewElement(tag.ReferencedFrameOfReferenceSequence, [][]*dicom.Element{frameItem})
}

// roiSequences builds StructureSetROISequence and ROIContourSequence, one
// entry per structure in insertion order with 1-based ROI numbers.
func roiSequences(store *contour.Store, tr *transform.Transformer) (*dicom.Element, *dicom.Element, error) {
	frameUID := store.Frame().FrameOfReferenceUID

	var roiItems [][]*dicom.Element
	var contourItems [][]*dicom.Element

	for i, s := range store.Structures() {
		roiNumber := strconv.Itoa(i + 1)

		roiItems = append(roiItems, []*dicom.Element{
			mustNewElement(tag.ROINumber, []string{roiNumber}),
			mustNewElement(tag.ReferencedFrameOfReferenceUID, []string{frameUID}),
			mustNewElement(tag.ROIName, []string{s.Name()}),
			mustNewElement(tag.ROIGenerationAlgorithm, []string{roiGenerationManual}),
		})

		var polyItems [][]*dicom.Element
		for _, sliceIdx := range s.SliceIndices() {
			for _, poly := range s.PolygonsOnSlice(sliceIdx) {
				ring := poly.Ring()
				data := make([]string, 0, len(ring)*3)
				for _, p := range ring {
					wx, wy, wz, err := tr.PixelToWorld(p.X, p.Y, sliceIdx)
					if err != nil {
						return nil, nil, fmt.Errorf("structure %q slice %d: %w", s.Name(), sliceIdx, err)
					}
					data = append(data,
						fmt.Sprintf("%.6f", wx),
						fmt.Sprintf("%.6f", wy),
						fmt.Sprintf("%.6f", wz))
				}
				polyItems = append(polyItems, []*dicom.Element{
					mustNewElement(tag.ContourGeometricType, []string{contourGeometryClosedPlanar}),
					mustNewElement(tag.NumberOfContourPoints, []string{strconv.Itoa(len(ring))}),
					mustNewElement(tag.ContourData, data),
				})
			}
		}

		color := s.Color().DICOM()
		item := []*dicom.Element{
			mustNewElement(tag.ROIDisplayColor, []string{
				strconv.Itoa(color[0]), strconv.Itoa(color[1]), strconv.Itoa(color[2]),
			}),
			mustNewElement(tag.ReferencedROINumber, []string{roiNumber}),
		}
		if len(polyItems) > 0 {
			item = append(item, mustNewElement(tag.ContourSequence, polyItems))
		}
		contourItems = append(contourItems, item)
	}

	roiSeq := mustNewElement(tag.StructureSetROISequence, roiItems)
	contourSeq := mustNewElement(tag.ROIContourSequence, contourItems)
	return roiSeq, contourSeq, nil
}
