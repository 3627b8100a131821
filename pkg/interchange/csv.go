package interchange

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rtcontour/pkg/contour"
)

// ExportCSV writes one CSV file per structure into dir, named after a
// filesystem-safe version of the structure name. Columns are SliceIndex,
// PointIndex, X, Y; PointIndex restarts at 0 for each polygon, so polygon
// boundaries within a slice remain recoverable.
func ExportCSV(dir string, store *contour.Store) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating CSV output directory: %w", err)
	}

	for _, s := range store.Structures() {
		path := filepath.Join(dir, safeName(s.Name())+".csv")
		if err := writeStructureCSV(path, s); err != nil {
			return fmt.Errorf("structure %q: %w", s.Name(), err)
		}
	}
	store.MarkSaved()
	return nil
}

func writeStructureCSV(path string, s *contour.Structure) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"SliceIndex", "PointIndex", "X", "Y"}); err != nil {
		return err
	}
	for _, idx := range s.SliceIndices() {
		for _, poly := range s.PolygonsOnSlice(idx) {
			for i, p := range poly.Points() {
				rec := []string{
					strconv.Itoa(idx),
					strconv.Itoa(i),
					strconv.FormatFloat(p.X, 'g', -1, 64),
					strconv.FormatFloat(p.Y, 'g', -1, 64),
				}
				if err := w.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	w.Flush()
	return w.Error()
}

// safeName replaces every non-alphanumeric rune with an underscore.
func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
