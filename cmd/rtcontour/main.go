package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"time"

	"rtcontour/pkg/config"
	"rtcontour/pkg/contour"
	"rtcontour/pkg/interchange"
	"rtcontour/pkg/maskview"
	"rtcontour/pkg/rtstruct"
	"rtcontour/pkg/volume"
)

func main() {
	// Parse command line arguments
	inputFile := flag.String("input", "", "RT structure set DICOM file to import")
	configPath := flag.String("config", "rtcontour.yaml", "Configuration file path")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	numSlices := flag.Int("slices", 0, "Number of axial slices in the referenced image grid")
	numRows := flag.Int("rows", 512, "Number of rows in the referenced image grid")
	numCols := flag.Int("cols", 512, "Number of columns in the referenced image grid")
	spacingArg := flag.String("spacing", "1,1,1", "Voxel spacing in mm as x,y,z")
	originArg := flag.String("origin", "0,0,0", "World position of voxel (0,0,0) in mm as x,y,z")
	numWorkers := flag.Int("workers", runtime.NumCPU(), "Number of CPU cores to use (default: all available)")
	jsonOut := flag.String("json", "", "Write the imported structures as a JSON document")
	csvDir := flag.String("csv-dir", "", "Write per-structure CSV files into this directory")
	dicomOut := flag.String("dicom", "", "Re-export the structures as a new RT structure set")
	previewName := flag.String("preview", "", "Structure to render as a slice image sequence")
	previewDir := flag.String("preview-dir", "mask_preview", "Directory to save preview slices")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config file: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputFile == "" || *numSlices <= 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	workers := cfg.Processing.NumWorkers
	if *numWorkers > 0 {
		workers = *numWorkers
	}

	level := slog.LevelWarn
	if cfg.Output.Verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	spacing, err := parseTriple(*spacingArg)
	if err != nil {
		log.Fatalf("Invalid -spacing value %q: %v", *spacingArg, err)
	}
	origin, err := parseTriple(*originArg)
	if err != nil {
		log.Fatalf("Invalid -origin value %q: %v", *originArg, err)
	}

	params := contour.Params{
		NumSlices: *numSlices,
		Height:    *numRows,
		Width:     *numCols,
		Geom: volume.Geometry{
			Spacing:   volume.Spacing{X: spacing[0], Y: spacing[1], Z: spacing[2]},
			Origin:    volume.Origin{X: origin[0], Y: origin[1], Z: origin[2]},
			Direction: volume.AxisAligned,
		},
		Workers: workers,
		Log:     logger,
	}

	fmt.Println("================================")
	fmt.Println("RTCONTOUR - RT STRUCTURE SET CONTOUR TOOLKIT")
	fmt.Println("================================")

	fmt.Printf("Importing RT structure set: %s\n", *inputFile)
	startTime := time.Now()
	store, err := rtstruct.ImportFile(*inputFile, params)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	fmt.Printf("Import completed in %.2f seconds\n\n", time.Since(startTime).Seconds())

	printSummary(store)

	if *jsonOut != "" {
		fmt.Printf("\nWriting JSON document to: %s\n", *jsonOut)
		if err := interchange.SaveJSON(*jsonOut, store); err != nil {
			log.Fatalf("JSON export failed: %v", err)
		}
	}

	if *csvDir != "" {
		fmt.Printf("\nWriting CSV files to: %s\n", *csvDir)
		if err := interchange.ExportCSV(*csvDir, store); err != nil {
			log.Fatalf("CSV export failed: %v", err)
		}
	}

	if *dicomOut != "" {
		fmt.Printf("\nWriting RT structure set to: %s\n", *dicomOut)
		opts := &rtstruct.EncodeOptions{Label: cfg.Output.StructureSetLabel}
		if err := rtstruct.SaveFile(*dicomOut, store, opts); err != nil {
			log.Fatalf("RT structure set export failed: %v", err)
		}
	}

	if *previewName != "" {
		fmt.Printf("\nRendering %q slices to: %s\n", *previewName, *previewDir)
		mask, err := store.Mask(*previewName)
		if err != nil {
			log.Fatalf("Failed to rasterize %q: %v", *previewName, err)
		}
		viewer := maskview.NewViewer(mask, nil)
		if err := viewer.SaveSliceSequence(*previewDir); err != nil {
			log.Fatalf("Failed to save preview slices: %v", err)
		}
	}

	fmt.Println("\nDone.")
}

// printSummary lists the imported patient metadata and per-structure
// statistics.
func printSummary(store *contour.Store) {
	meta := store.PatientInfo()
	fmt.Printf("Patient: %s (%s)\n", meta.PatientName, meta.PatientID)
	if meta.StudyDescription != "" {
		fmt.Printf("Study: %s\n", meta.StudyDescription)
	}

	stats := store.Statistics()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("\nStructures (%d):\n", len(names))
	fmt.Printf("=======================================\n")
	for _, name := range names {
		s := stats[name]
		fmt.Printf("%-24s %3d slices  %10.2f cm3\n", s.Name, s.SliceCount, s.VolumeMm3/1000.0)
	}
}

// parseTriple parses a comma-separated x,y,z float triple.
func parseTriple(s string) ([3]float64, error) {
	var t [3]float64
	n, err := fmt.Sscanf(s, "%f,%f,%f", &t[0], &t[1], &t[2])
	if err != nil {
		return t, err
	}
	if n != 3 {
		return t, fmt.Errorf("expected 3 values, got %d", n)
	}
	return t, nil
}
