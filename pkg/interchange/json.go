// Package interchange serializes a contour store to JSON and CSV for
// tooling and debugging. Both formats stay in pixel space with no world
// coordinate conversion, round-tripping the contour data model exactly;
// clinical interchange goes through the rtstruct package instead.
package interchange

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"rtcontour/pkg/contour"
	"rtcontour/pkg/raster"
)

// SchemaVersion identifies the JSON layout written by SaveJSON.
const SchemaVersion = "1.0"

// Document is the on-disk JSON layout. Contours are keyed by decimal slice
// index; each slice holds a list of polygons, each polygon a list of [x,y]
// pixel coordinates, so multiple disjoint polygons per slice survive the
// round trip.
type Document struct {
	Version           string                 `json:"version"`
	CreatedTime       string                 `json:"created_time"`
	PatientInfo       contour.PatientMeta    `json:"patient_info"`
	ReferenceFrameUID string                 `json:"reference_frame_uid"`
	Isocenter         *[3]float64            `json:"isocenter"`
	Structures        map[string]StructureDoc `json:"structures"`
}

// StructureDoc is one structure in the JSON document.
type StructureDoc struct {
	Contours map[string][][][2]float64 `json:"contours"`
	Color    [3]float64                `json:"color"`
}

// Marshal renders the store into the JSON document form.
func Marshal(store *contour.Store) *Document {
	doc := &Document{
		Version:           SchemaVersion,
		CreatedTime:       time.Now().Format(time.RFC3339),
		PatientInfo:       store.PatientInfo(),
		ReferenceFrameUID: store.Frame().FrameOfReferenceUID,
		Structures:        make(map[string]StructureDoc, len(store.Structures())),
	}
	if iso, ok := store.Isocenter(); ok {
		doc.Isocenter = &iso
	}

	for _, s := range store.Structures() {
		sd := StructureDoc{
			Contours: make(map[string][][][2]float64, s.NumSlices()),
			Color:    [3]float64{s.Color().R, s.Color().G, s.Color().B},
		}
		for _, idx := range s.SliceIndices() {
			var polys [][][2]float64
			for _, poly := range s.PolygonsOnSlice(idx) {
				pts := poly.Points()
				coords := make([][2]float64, len(pts))
				for i, p := range pts {
					coords[i] = [2]float64{p.X, p.Y}
				}
				polys = append(polys, coords)
			}
			sd.Contours[strconv.Itoa(idx)] = polys
		}
		doc.Structures[s.Name()] = sd
	}
	return doc
}

// SaveJSON writes the store as indented JSON to path. On success the store
// is marked saved.
func SaveJSON(path string, store *contour.Store) error {
	data, err := json.MarshalIndent(Marshal(store), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling contours: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing JSON file: %w", err)
	}
	store.MarkSaved()
	return nil
}

// LoadJSON reads a JSON document and materializes a fresh store bound to
// the image volume described by params. Like the DICOM decode it is atomic:
// a parse failure returns no store at all. Structures load in name order.
func LoadJSON(path string, params contour.Params) (*contour.Store, error) {
	log := params.Log
	if log == nil {
		log = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading JSON file: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing contour JSON: %v: %w", err, contour.ErrFormat)
	}
	if doc.Version != SchemaVersion {
		log.Warn("contour JSON version may be incompatible", "version", doc.Version)
	}

	if params.Frame != nil && params.Frame.FrameOfReferenceUID == "" {
		params.Frame.FrameOfReferenceUID = doc.ReferenceFrameUID
	}
	store := contour.NewStore(params)
	if store.Frame().FrameOfReferenceUID == "" {
		store.Frame().FrameOfReferenceUID = doc.ReferenceFrameUID
	}
	store.SetPatientInfo(doc.PatientInfo)
	if doc.Isocenter != nil {
		store.SetIsocenter(*doc.Isocenter)
	}

	names := make([]string, 0, len(doc.Structures))
	for name := range doc.Structures {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sd := doc.Structures[name]
		color := contour.Color{R: sd.Color[0], G: sd.Color[1], B: sd.Color[2]}
		if !store.AddStructure(name, &color) {
			return nil, fmt.Errorf("duplicate structure %q in JSON: %w", name, contour.ErrFormat)
		}
		for key, polys := range sd.Contours {
			idx, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("invalid slice index %q in JSON: %w", key, contour.ErrFormat)
			}
			for _, coords := range polys {
				points := make([]raster.Point, len(coords))
				for i, c := range coords {
					points[i] = raster.Point{X: c[0], Y: c[1]}
				}
				if !store.AddContourPoints(name, idx, points, true) {
					log.Warn("dropping invalid contour from JSON", "structure", name, "slice", idx)
				}
			}
		}
	}
	return store, nil
}
