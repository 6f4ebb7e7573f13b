// Package analysis runs the thickness fitting pipeline over measurement files:
// index tables are loaded, the measurement batch is read and preprocessed,
// the thickness grid is swept for every wavelength and the resulting error
// surface is rendered and summarized.
package analysis

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/stat"

	"filmfit/internal/models"
	"filmfit/pkg/config"
	"filmfit/pkg/fitting"
	"filmfit/pkg/ingest"
	"filmfit/pkg/material"
	"filmfit/pkg/visualization"
)

// Summary describes the outcome of a batch run.
type Summary struct {
	// Found is the number of files matching the measurement pattern
	Found int

	// Processed is the number of wavelengths that made it into the surface
	Processed int

	// Skipped lists files left out during ingestion or preprocessing
	Skipped []ingest.Skip

	// Fits holds the best thickness per wavelength, ascending wavelength
	Fits []fitting.Fit

	// MeanThickness and StdThickness summarize the per-wavelength best fits.
	// Rows without a finite minimum are excluded.
	MeanThickness float64
	StdThickness  float64

	// Images lists the files written by the run
	Images []string
}

// Analyzer handles a fitting run configured by a config.Config.
type Analyzer struct {
	cfg *config.Config

	// out receives stage banners and the summary table
	out io.Writer

	provider *material.Provider
	fitter   *fitting.Fitter

	surface *fitting.ErrorSurface
	curves  []models.Curve
	summary Summary
}

// NewAnalyzer creates an analyzer. Progress and results are written to
// stdout when the configuration is verbose.
func NewAnalyzer(cfg *config.Config) *Analyzer {
	a := &Analyzer{cfg: cfg, out: io.Discard}
	if cfg.Output.Verbose {
		a.out = os.Stdout
	}
	return a
}

// SetOutput redirects stage banners and summaries
func (a *Analyzer) SetOutput(w io.Writer) {
	a.out = w
}

// Process runs the complete batch pipeline
func (a *Analyzer) Process() error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	grid, err := a.cfg.ThicknessGrid()
	if err != nil {
		return err
	}

	// Step 1: Load index tables
	fmt.Fprintln(a.out, "Step 1: Loading refractive index tables...")
	if err := a.loadProvider(); err != nil {
		return err
	}

	// Step 2: Discover and read measurement files
	fmt.Fprintln(a.out, "Step 2: Loading measurement files...")
	paths, err := ingest.Discover(a.cfg.Data.DataDir, a.cfg.Data.MeasurementGlob)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Found %d measurement files\n", len(paths))
	batch := ingest.LoadBatch(paths, a.cfg.WavelengthFilter)
	a.summary = Summary{Found: batch.Found, Skipped: batch.Skipped}

	// Step 3: Preprocess curves
	fmt.Fprintln(a.out, "Step 3: Preprocessing measured curves...")
	jobs := a.prepareJobs(batch.Measurements)
	if len(jobs) == 0 {
		return fmt.Errorf("%w: none of %d measurement files could be used", fitting.ErrInsufficientData, batch.Found)
	}

	// Step 4: Sweep the thickness grid for every wavelength
	fmt.Fprintf(a.out, "Step 4: Sweeping %d wavelengths x %d thicknesses...\n", len(jobs), len(grid))
	a.surface, err = a.fitter.Sweep(jobs, grid)
	fmt.Fprintln(a.out)
	if err != nil {
		return fmt.Errorf("failed to sweep error surface: %w", err)
	}
	a.summarize()

	// Step 5: Render results
	fmt.Fprintln(a.out, "Step 5: Rendering results...")
	a.render()

	fmt.Fprintf(a.out, "\nProcessed %d of %d files (%d skipped)\n",
		a.summary.Processed, a.summary.Found, len(a.summary.Skipped))
	fmt.Fprintln(a.out, "\nMinimum error thickness for each wavelength:")
	return visualization.NewViewer(a.surface).WriteSummary(a.out)
}

// FitFile fits a single measurement file. A wavelengthNM of 0 takes the
// wavelength from the file name. The error curve and the best-fit overlay are
// rendered next to the configured output.
func (a *Analyzer) FitFile(path string, wavelengthNM int) (fitting.Fit, error) {
	if err := a.cfg.Validate(); err != nil {
		return fitting.Fit{}, fmt.Errorf("invalid configuration: %w", err)
	}
	grid, err := a.cfg.ThicknessGrid()
	if err != nil {
		return fitting.Fit{}, err
	}
	if err := a.loadProvider(); err != nil {
		return fitting.Fit{}, err
	}

	m, err := ingest.ReadMeasurementFile(path)
	if err != nil {
		return fitting.Fit{}, err
	}
	if wavelengthNM > 0 {
		m.WavelengthNM = wavelengthNM
	}
	if m.WavelengthNM <= 0 {
		return fitting.Fit{}, fmt.Errorf("%w: no wavelength for %s", fitting.ErrInsufficientData, filepath.Base(path))
	}

	curve, err := fitting.Preprocess(m.Samples, a.cfg.Preprocessing)
	if err != nil {
		return fitting.Fit{}, fmt.Errorf("%s at %dnm: %w", filepath.Base(path), m.WavelengthNM, err)
	}

	a.summary = Summary{Found: 1}
	a.curves = []models.Curve{curve}
	a.surface, err = a.fitter.Sweep([]fitting.Job{{Wavelength: m.WavelengthUM(), Curve: curve}}, grid)
	fmt.Fprintln(a.out)
	if err != nil {
		return fitting.Fit{}, err
	}
	a.summarize()

	fit := a.surface.BestFit(0)
	if fit.Index < 0 {
		fmt.Fprintln(a.out, "Warning: every thickness produced an undefined error")
		return fit, nil
	}
	fmt.Fprintf(a.out, "Best Thickness is: %.6f um giving a squared error of %.6f\n", fit.Thickness, fit.Error)

	a.renderRow(0, stem(path))
	return fit, nil
}

// GetSummary returns the outcome of the last run
func (a *Analyzer) GetSummary() Summary {
	return a.summary
}

// GetSurface returns the error surface of the last run
func (a *Analyzer) GetSurface() *fitting.ErrorSurface {
	return a.surface
}

func (a *Analyzer) loadProvider() error {
	if a.provider != nil {
		return nil
	}
	p, err := ingest.LoadProvider(a.cfg.TablesDirectory(), a.cfg.Data.Materials)
	if err != nil {
		return fmt.Errorf("failed to load index tables: %w", err)
	}
	a.provider = p
	a.fitter = fitting.NewFitter(p, a.cfg.FitterParams())
	a.fitter.SetProgressCallback(func(completed, total int) {
		fmt.Fprintf(a.out, "\rSweeping thickness grid: %.1f%% complete", float64(completed)/float64(total)*100)
	})
	return nil
}

// prepareJobs preprocesses every measurement. Curves with too few samples
// are logged and skipped so that the batch continues.
func (a *Analyzer) prepareJobs(ms []models.Measurement) []fitting.Job {
	jobs := make([]fitting.Job, 0, len(ms))
	a.curves = a.curves[:0]
	for _, m := range ms {
		curve, err := fitting.Preprocess(m.Samples, a.cfg.Preprocessing)
		if err != nil {
			fmt.Fprintf(a.out, "Warning: skipping %s: %v\n", filepath.Base(m.Source), err)
			a.summary.Skipped = append(a.summary.Skipped, ingest.Skip{Path: m.Source, Reason: err.Error()})
			continue
		}
		jobs = append(jobs, fitting.Job{Wavelength: m.WavelengthUM(), Curve: curve})
		a.curves = append(a.curves, curve)
		fmt.Fprintf(a.out, "  Processed %dnm\n", m.WavelengthNM)
	}
	return jobs
}

func (a *Analyzer) summarize() {
	fits := a.surface.BestFits()
	a.summary.Fits = fits
	a.summary.Processed = len(fits)

	var ds []float64
	for _, f := range fits {
		if f.Index >= 0 {
			ds = append(ds, f.Thickness)
		}
	}
	switch len(ds) {
	case 0:
		a.summary.MeanThickness, a.summary.StdThickness = 0, 0
	case 1:
		a.summary.MeanThickness, a.summary.StdThickness = ds[0], 0
	default:
		a.summary.MeanThickness, a.summary.StdThickness = stat.MeanStdDev(ds, nil)
	}
}

// render writes the 2D plots for multi-wavelength surfaces and the error
// curve plus fit overlay for single rows. Rendering failures are warnings.
func (a *Analyzer) render() {
	rows, _ := a.surface.Dims()
	if rows < 2 {
		a.renderRow(0, "single_wavelength")
		return
	}

	v := visualization.NewViewer(a.surface)
	heat := a.outputPath(a.cfg.Output.Heatmap)
	if err := v.SaveHeatmap(heat); err != nil {
		fmt.Fprintf(a.out, "Warning: Failed to save heat map: %v\n", err)
	} else {
		a.summary.Images = append(a.summary.Images, heat)
	}

	contour := a.outputPath(a.cfg.Output.Contour)
	if err := v.SaveContour(contour, a.cfg.Output.ContourLevels); err != nil {
		fmt.Fprintf(a.out, "Warning: Failed to save contour plot: %v\n", err)
	} else {
		a.summary.Images = append(a.summary.Images, contour)
	}
}

func (a *Analyzer) renderRow(row int, name string) {
	v := visualization.NewViewer(a.surface)
	curvePath := a.outputPath(name + "_error.png")
	if err := v.SaveErrorCurve(row, curvePath); err != nil {
		fmt.Fprintf(a.out, "Warning: Failed to save error curve: %v\n", err)
	} else {
		a.summary.Images = append(a.summary.Images, curvePath)
	}

	fit := a.surface.BestFit(row)
	if fit.Index < 0 || row >= len(a.curves) {
		return
	}
	predicted, err := a.fitter.Predict(a.curves[row], fit.Wavelength, fit.Thickness)
	if err != nil {
		fmt.Fprintf(a.out, "Warning: Failed to predict best fit: %v\n", err)
		return
	}
	overlayPath := a.outputPath(name + "_best_fit.png")
	title := fmt.Sprintf("Best Guess: d = %.4f µm at %.0f nm", fit.Thickness, fit.Wavelength*1000)
	if err := visualization.SaveFitOverlay(a.curves[row], predicted, title, overlayPath); err != nil {
		fmt.Fprintf(a.out, "Warning: Failed to save fit overlay: %v\n", err)
	} else {
		a.summary.Images = append(a.summary.Images, overlayPath)
	}
}

func (a *Analyzer) outputPath(name string) string {
	if err := os.MkdirAll(a.cfg.Output.Dir, 0755); err != nil {
		fmt.Fprintf(a.out, "Warning: Failed to create output directory: %v\n", err)
	}
	return filepath.Join(a.cfg.Output.Dir, name)
}

// stem returns the file name without directory and extension
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
