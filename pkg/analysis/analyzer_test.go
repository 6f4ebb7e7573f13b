package analysis

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmfit/pkg/config"
	"filmfit/pkg/fitting"
	"filmfit/pkg/material"
	"filmfit/pkg/optics"
)

const quartzTable = "wl(um),n\n0.4,1.4701\n0.5,1.4623\n0.6,1.4580\n0.7,1.4553\n0.8,1.4533\n0.9,1.4518\n"
const siliconTable = "wl(um),n\n0.4,5.57\n0.5,4.30\n0.6,3.94\n0.7,3.78\n0.8,3.69\n0.9,3.63\n"

// writeSyntheticMeasurement writes a measurement file whose interior samples
// follow the model at thickness d; the first and last two rows are junk.
func writeSyntheticMeasurement(t *testing.T, dir string, nm int, d float64) {
	t.Helper()
	wl := float64(nm) / 1000
	n2 := interp(t, quartzTable, wl)
	n3 := interp(t, siliconTable, wl)

	var b strings.Builder
	b.WriteString("angle,current\n")
	b.WriteString("-5,0.01\n")
	for deg := 0.0; deg <= 60; deg += 1.5 {
		_, _, tavg := optics.Transmission(1.0, n2, n3, []float64{deg * math.Pi / 180}, optics.Wavenumber(wl), d)
		fmt.Fprintf(&b, "%g,%.12g\n", deg, 3.2*tavg[0])
	}
	b.WriteString("62,0.02\n63,0.01\n")

	name := fmt.Sprintf("RotBeamMap__T5C__%dnm.csv", nm)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0644))
}

// interp evaluates a test table through the material package
func interp(t *testing.T, csv string, wl float64) float64 {
	var wls, ns []float64
	for _, line := range strings.Split(strings.TrimSpace(csv), "\n")[1:] {
		var w, n float64
		_, err := fmt.Sscanf(line, "%g,%g", &w, &n)
		require.NoError(t, err)
		wls, ns = append(wls, w), append(ns, n)
	}
	tbl, err := material.NewTable(wls, ns)
	require.NoError(t, err)
	return tbl.At(wl)
}

func createTestConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quartz.csv"), []byte(quartzTable), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "si.csv"), []byte(siliconTable), 0644))

	cfg := config.DefaultConfig()
	cfg.Data.DataDir = dir
	cfg.Data.Materials = map[string]string{material.Quartz: "quartz.csv", material.Silicon: "si.csv"}
	cfg.Thickness.Min, cfg.Thickness.Max, cfg.Thickness.Points = 1.0, 2.5, 301
	cfg.Processing.NumCores = 2
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.ContourLevels = 5
	return cfg
}

func TestProcessBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping pipeline test in short mode")
	}
	cfg := createTestConfig(t)
	dir := cfg.Data.DataDir
	for _, nm := range []int{650, 700, 760} {
		writeSyntheticMeasurement(t, dir, nm, 1.62)
	}
	// too short after trimming
	require.NoError(t, os.WriteFile(filepath.Join(dir, "short__800nm.csv"), []byte("angle,current\n0,1\n5,1\n10,1\n"), 0644))
	// missing column
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken__820nm.csv"), []byte("angle,volts\n0,1\n"), 0644))
	// outside the filter
	writeSyntheticMeasurement(t, dir, 450, 1.62)
	cfg.WavelengthFilter.MinNM = 500

	a := NewAnalyzer(cfg)
	var out bytes.Buffer
	a.SetOutput(&out)
	require.NoError(t, a.Process())

	s := a.GetSummary()
	assert.Equal(t, 6, s.Found)
	assert.Equal(t, 3, s.Processed)
	assert.Len(t, s.Skipped, 3)
	require.Len(t, s.Fits, 3)

	spacing := 1.5 / 300
	for _, fit := range s.Fits {
		assert.InDelta(t, 1.62, fit.Thickness, spacing, "wavelength %g", fit.Wavelength)
	}
	assert.InDelta(t, 1.62, s.MeanThickness, spacing)
	assert.Less(t, s.StdThickness, spacing)

	rows, cols := a.GetSurface().Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 301, cols)

	require.Len(t, s.Images, 2)
	for _, img := range s.Images {
		info, err := os.Stat(img)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
	assert.Contains(t, out.String(), "760nm")
	assert.Contains(t, out.String(), "Processed 3 of 6 files (3 skipped)")
}

func TestProcessNoUsableFiles(t *testing.T) {
	cfg := createTestConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Data.DataDir, "short__800nm.csv"), []byte("angle,current\n0,1\n"), 0644))

	a := NewAnalyzer(cfg)
	a.SetOutput(&bytes.Buffer{})
	err := a.Process()
	assert.ErrorIs(t, err, fitting.ErrInsufficientData)
	assert.Equal(t, 1, a.GetSummary().Found)
}

func TestProcessInvalidGrid(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Thickness.Points = 0

	a := NewAnalyzer(cfg)
	a.SetOutput(&bytes.Buffer{})
	assert.ErrorIs(t, a.Process(), fitting.ErrInvalidGrid)
}

func TestFitFile(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Thickness.Points = 151
	writeSyntheticMeasurement(t, cfg.Data.DataDir, 760, 1.9)
	path := filepath.Join(cfg.Data.DataDir, "RotBeamMap__T5C__760nm.csv")

	a := NewAnalyzer(cfg)
	var out bytes.Buffer
	a.SetOutput(&out)

	fit, err := a.FitFile(path, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.9, fit.Thickness, 1.5/150)
	assert.InDelta(t, 0.76, fit.Wavelength, 1e-12)
	assert.Contains(t, out.String(), "Best Thickness is")

	images := a.GetSummary().Images
	require.Len(t, images, 2)
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "RotBeamMap__T5C__760nm_error.png"))
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "RotBeamMap__T5C__760nm_best_fit.png"))
}

func TestFitFileNeedsWavelength(t *testing.T) {
	cfg := createTestConfig(t)
	path := filepath.Join(cfg.Data.DataDir, "scan.csv")
	require.NoError(t, os.WriteFile(path, []byte("angle,current\n0,1\n1,2\n2,3\n3,4\n4,5\n5,6\n"), 0644))

	a := NewAnalyzer(cfg)
	a.SetOutput(&bytes.Buffer{})
	_, err := a.FitFile(path, 0)
	assert.ErrorIs(t, err, fitting.ErrInsufficientData)

	fit, err := a.FitFile(path, 700)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, fit.Wavelength, 1e-12)
}

func TestProcessSeparateTablesDir(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Thickness.Points = 151
	measurements := filepath.Join(cfg.Data.DataDir, "ds_sipm_A")
	require.NoError(t, os.Mkdir(measurements, 0755))
	for _, nm := range []int{650, 760} {
		writeSyntheticMeasurement(t, measurements, nm, 1.9)
	}
	cfg.Data.TablesDir = cfg.Data.DataDir
	cfg.Data.DataDir = measurements

	a := NewAnalyzer(cfg)
	a.SetOutput(&bytes.Buffer{})
	require.NoError(t, a.Process())

	s := a.GetSummary()
	assert.Equal(t, 2, s.Processed)
	assert.InDelta(t, 1.9, s.MeanThickness, 1.5/150)
}
