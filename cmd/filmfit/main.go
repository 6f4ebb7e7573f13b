package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"filmfit/pkg/analysis"
	"filmfit/pkg/config"
	"filmfit/pkg/ingest"
	"filmfit/pkg/optics"
	"filmfit/pkg/visualization"
)

const usage = `Usage: filmfit <command> [flags]

Commands:
  fit          estimate the layer thickness from a single measurement file
  batch        sweep every measurement file in the data directory
  curve        render the model transmission against incidence angle
  init-config  write a default configuration file

Run "filmfit <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	fmt.Println("================================")
	fmt.Println("THIN-FILM THICKNESS ESTIMATION FROM ANGULAR TRANSMISSION")
	fmt.Println("================================")

	args := os.Args[2:]
	switch os.Args[1] {
	case "fit":
		runFit(args)
	case "batch":
		runBatch(args)
	case "curve":
		runCurve(args)
	case "init-config":
		runInitConfig(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the flags shared by the
// commands that run a fit.
func loadConfig(path, dataDir, tablesDir, outputDir string, cores int) *config.Config {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if dataDir != "" {
		cfg.Data.DataDir = dataDir
	}
	if tablesDir != "" {
		cfg.Data.TablesDir = tablesDir
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if cores > 0 {
		cfg.Processing.NumCores = cores
	}
	return cfg
}

func runFit(args []string) {
	fs := flag.NewFlagSet("fit", flag.ExitOnError)
	configPath := fs.String("config", "filmfit.yaml", "Configuration file")
	file := fs.String("file", "", "Measurement CSV file with angle and current columns")
	wavelength := fs.Int("wavelength", 0, "Wavelength in nm (default: taken from the file name)")
	tablesDir := fs.String("tables", "", "Directory holding the index tables (overrides config)")
	outputDir := fs.String("output", "", "Directory for rendered plots (overrides config)")
	cores := fs.Int("cores", 0, "Number of CPU cores to use (overrides config)")
	fs.Parse(args)

	if *file == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig(*configPath, "", *tablesDir, *outputDir, *cores)
	a := analysis.NewAnalyzer(cfg)

	startTime := time.Now()
	fit, err := a.FitFile(*file, *wavelength)
	if err != nil {
		log.Fatalf("Fit failed: %v", err)
	}

	fmt.Printf("\nFit completed in %.2f seconds\n", time.Since(startTime).Seconds())
	if fit.Index >= 0 {
		fmt.Printf("Thickness: %.6f um at %.0f nm (squared error %.6g)\n", fit.Thickness, fit.Wavelength*1000, fit.Error)
	}
	for _, img := range a.GetSummary().Images {
		fmt.Printf("Saved %s\n", img)
	}
}

func runBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	configPath := fs.String("config", "filmfit.yaml", "Configuration file")
	dataDir := fs.String("data", "", "Directory containing measurement files (overrides config)")
	tablesDir := fs.String("tables", "", "Directory holding the index tables (default: the data directory)")
	outputDir := fs.String("output", "", "Directory for rendered plots (overrides config)")
	cores := fs.Int("cores", 0, "Number of CPU cores to use (overrides config)")
	baseline := fs.Bool("baseline", false, "Subtract the mean of the first and last current before fitting")
	minNM := fs.Int("min-wavelength", 0, "Skip files below this wavelength in nm")
	maxNM := fs.Int("max-wavelength", 0, "Skip files above this wavelength in nm")
	fs.Parse(args)

	cfg := loadConfig(*configPath, *dataDir, *tablesDir, *outputDir, *cores)
	if *baseline {
		cfg.Preprocessing.SubtractBaseline = true
	}
	if *minNM > 0 {
		cfg.WavelengthFilter.MinNM = *minNM
	}
	if *maxNM > 0 {
		cfg.WavelengthFilter.MaxNM = *maxNM
	}

	fmt.Printf("Sweeping %s with %d cores...\n", filepath.Join(cfg.Data.DataDir, cfg.Data.MeasurementGlob), cfg.Processing.NumCores)
	a := analysis.NewAnalyzer(cfg)

	startTime := time.Now()
	if err := a.Process(); err != nil {
		log.Fatalf("Batch failed: %v", err)
	}
	processingTime := time.Since(startTime)

	s := a.GetSummary()
	fmt.Printf("\nBatch completed in %.2f seconds\n", processingTime.Seconds())
	fmt.Printf("Mean thickness: %.4f um (std %.4f um) over %d wavelengths\n", s.MeanThickness, s.StdThickness, s.Processed)
	for _, skip := range s.Skipped {
		fmt.Printf("- skipped %s: %s\n", filepath.Base(skip.Path), skip.Reason)
	}
	for _, img := range s.Images {
		fmt.Printf("Saved %s\n", img)
	}
}

func runCurve(args []string) {
	fs := flag.NewFlagSet("curve", flag.ExitOnError)
	configPath := fs.String("config", "filmfit.yaml", "Configuration file")
	tablesDir := fs.String("tables", "", "Directory holding the index tables (overrides config)")
	wavelength := fs.Int("wavelength", 760, "Wavelength in nm")
	thickness := fs.Float64("thickness", 1.5, "Layer thickness in um")
	points := fs.Int("points", 1000, "Number of incidence angles")
	maxAngle := fs.Float64("max-angle", 90, "Largest incidence angle in degrees")
	output := fs.String("out", "model_transmission.png", "Output image")
	fs.Parse(args)

	cfg := loadConfig(*configPath, "", *tablesDir, "", 0)
	provider, err := ingest.LoadProvider(cfg.TablesDirectory(), cfg.Data.Materials)
	if err != nil {
		log.Fatalf("Failed to load index tables: %v", err)
	}

	wl := float64(*wavelength) / 1000
	n2, err := provider.IndexAt(cfg.Model.Layer, wl)
	if err != nil {
		log.Fatalf("Layer index: %v", err)
	}
	n3, err := provider.IndexAt(cfg.Model.Substrate, wl)
	if err != nil {
		log.Fatalf("Substrate index: %v", err)
	}

	stack, err := optics.NewStack(cfg.Model.AmbientIndex, n2, n3, wl, *thickness)
	if err != nil {
		log.Fatalf("Invalid stack: %v", err)
	}
	angles := optics.AngleSweep(*points, *maxAngle*math.Pi/180)
	tp, ts, tavg := stack.Transmission(angles)

	fmt.Printf("n(%s) = %.4f, n(%s) = %.4f at %d nm\n", cfg.Model.Layer, n2, cfg.Model.Substrate, n3, *wavelength)
	fmt.Printf("Thickness period at normal incidence: %.4f um\n", optics.ThicknessPeriod(cfg.Model.AmbientIndex, n2, 0, wl))

	title := fmt.Sprintf("Transmission at %d nm, d = %.3f µm", *wavelength, *thickness)
	if err := visualization.SaveModelCurves(angles, tp, ts, tavg, title, *output); err != nil {
		log.Fatalf("Failed to save model curves: %v", err)
	}
	fmt.Printf("Saved %s\n", *output)
}

func runInitConfig(args []string) {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	configPath := fs.String("config", "filmfit.yaml", "Path of the configuration file to create")
	force := fs.Bool("force", false, "Overwrite an existing file")
	fs.Parse(args)

	if _, err := os.Stat(*configPath); err == nil && !*force {
		log.Fatalf("%s already exists (use -force to overwrite)", *configPath)
	}
	if err := config.CreateDefaultConfigFile(*configPath); err != nil {
		log.Fatalf("Failed to create configuration: %v", err)
	}
	fmt.Printf("Default configuration written to %s\n", *configPath)
}
