package visualization

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filmfit/internal/models"
	"filmfit/pkg/fitting"
	"filmfit/pkg/material"
	"filmfit/pkg/optics"
)

// createTestSurface sweeps a synthetic curve over a small grid
func createTestSurface(t *testing.T, wavelengths []float64, ambient float64) (*fitting.ErrorSurface, models.Curve) {
	quartz, err := material.NewTable([]float64{0.5, 0.8}, []float64{1.457, 1.453})
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	silicon, err := material.NewTable([]float64{0.5, 0.8}, []float64{4.30, 3.69})
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	p := material.NewProvider(map[string]*material.Table{material.Quartz: quartz, material.Silicon: silicon})

	angles := optics.AngleSweep(30, 1.3)
	_, _, tavg := optics.Transmission(1.0, 1.455, 3.9, angles, optics.Wavenumber(0.65), 1.4)
	curve, err := fitting.CurveFromDegrees(models.Curve{Angles: angles}.Degrees(), tavg)
	if err != nil {
		t.Fatalf("Failed to build curve: %v", err)
	}

	grid, _ := fitting.LinearGrid(1.0, 2.0, 50)
	f := fitting.NewFitter(p, fitting.Params{AmbientIndex: ambient, NumWorkers: 2})
	s, err := f.WavelengthSweep(curve, wavelengths, grid)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	return s, curve
}

// assertImage verifies that a non-empty file was written
func assertImage(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Expected image at %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Errorf("Image %s is empty", path)
	}
}

// TestSaveHeatmapAndContour verifies 2D renderings of a multi-row surface
func TestSaveHeatmapAndContour(t *testing.T) {
	s, _ := createTestSurface(t, []float64{0.6, 0.65, 0.7}, 1.0)
	dir := t.TempDir()
	v := NewViewer(s)
	v.SetSize(4*72, 3*72)

	heat := filepath.Join(dir, "heatmap.png")
	if err := v.SaveHeatmap(heat); err != nil {
		t.Fatalf("SaveHeatmap failed: %v", err)
	}
	assertImage(t, heat)

	contour := filepath.Join(dir, "contour.png")
	if err := v.SaveContour(contour, 10); err != nil {
		t.Fatalf("SaveContour failed: %v", err)
	}
	assertImage(t, contour)

	if err := v.SaveContour(contour, 0); err == nil {
		t.Error("Expected an error for zero contour levels")
	}
}

// TestSingleRowSurface verifies that 2D plots refuse a single row while the
// error curve still renders
func TestSingleRowSurface(t *testing.T) {
	s, _ := createTestSurface(t, []float64{0.65}, 1.0)
	dir := t.TempDir()
	v := NewViewer(s)

	if err := v.SaveHeatmap(filepath.Join(dir, "heatmap.png")); err == nil {
		t.Error("Expected an error for a single-row heat map")
	}

	curve := filepath.Join(dir, "error.svg")
	if err := v.SaveErrorCurve(0, curve); err != nil {
		t.Fatalf("SaveErrorCurve failed: %v", err)
	}
	assertImage(t, curve)

	if err := v.SaveErrorCurve(1, curve); err == nil {
		t.Error("Expected an error for a row outside the surface")
	}
}

// TestWriteSummary verifies the per-wavelength summary table
func TestWriteSummary(t *testing.T) {
	s, _ := createTestSurface(t, []float64{0.6, 0.65}, 1.0)
	var buf bytes.Buffer
	if err := NewViewer(s).WriteSummary(&buf); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header and 2 rows, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "600nm") || !strings.HasPrefix(lines[2], "650nm") {
		t.Errorf("Rows not in wavelength order:\n%s", out)
	}
}

// TestNaNSurfaceRenders verifies that undefined cells do not break rendering
func TestNaNSurfaceRenders(t *testing.T) {
	// dense ambient: every row is NaN at the steepest angles
	s, _ := createTestSurface(t, []float64{0.6, 0.7}, 1.6)
	if !math.IsNaN(s.At(0, 0)) {
		t.Fatalf("Expected NaN cells, got %g", s.At(0, 0))
	}

	dir := t.TempDir()
	v := NewViewer(s)
	if err := v.SaveHeatmap(filepath.Join(dir, "nan.png")); err != nil {
		t.Errorf("SaveHeatmap failed on NaN surface: %v", err)
	}
	if err := v.SaveErrorCurve(0, filepath.Join(dir, "nan_curve.png")); err == nil {
		t.Error("Expected an error for a row without finite errors")
	}

	var buf bytes.Buffer
	if err := v.WriteSummary(&buf); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	if !strings.Contains(buf.String(), "NaN") {
		t.Errorf("Expected NaN rows in summary:\n%s", buf.String())
	}
}

// TestSaveCurves verifies the fit overlay and model curve plots
func TestSaveCurves(t *testing.T) {
	_, curve := createTestSurface(t, []float64{0.65}, 1.0)
	dir := t.TempDir()

	overlay := filepath.Join(dir, "overlay.png")
	if err := SaveFitOverlay(curve, curve.Values, "Best Guess", overlay); err != nil {
		t.Fatalf("SaveFitOverlay failed: %v", err)
	}
	assertImage(t, overlay)
	if err := SaveFitOverlay(curve, curve.Values[1:], "bad", overlay); err == nil {
		t.Error("Expected an error for mismatched prediction length")
	}

	angles := optics.AngleSweep(100, math.Pi/2*0.99)
	tp, ts, tavg := optics.Transmission(1.0, 1.46, 4.3, angles, optics.Wavenumber(0.5), 1.15)
	model := filepath.Join(dir, "model.pdf")
	if err := SaveModelCurves(angles, tp, ts, tavg, "Vacuum/Quartz/Silicon", model); err != nil {
		t.Fatalf("SaveModelCurves failed: %v", err)
	}
	assertImage(t, model)
}

// TestSurfaceGridExtrema verifies NaN cells are ignored by the color scale
func TestSurfaceGridExtrema(t *testing.T) {
	s, _ := createTestSurface(t, []float64{0.6, 0.7}, 1.0)
	g := newSurfaceGrid(s)

	c, r := g.Dims()
	if c != 50 || r != 2 {
		t.Fatalf("Expected 50x2 grid, got %dx%d", c, r)
	}
	if math.Abs(g.Y(1)-700) > 1e-9 {
		t.Errorf("Expected wavelength axis in nm, got %g", g.Y(1))
	}
	if g.Min() < 0 || g.Max() < g.Min() {
		t.Errorf("Unexpected extrema [%g, %g]", g.Min(), g.Max())
	}
}
