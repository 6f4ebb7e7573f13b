// Package ingest reads measurement files and refractive index tables from
// CSV, and discovers the per-wavelength files of a measurement batch.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"filmfit/internal/models"
	"filmfit/pkg/material"
)

// ErrMalformedInput is returned for files that lack required columns or hold
// values that cannot be parsed.
var ErrMalformedInput = errors.New("ingest: malformed input")

// Column names of the supported file layouts.
const (
	ColumnAngle      = "angle"
	ColumnCurrent    = "current"
	ColumnWavelength = "wl(um)"
	ColumnIndex      = "n"
)

// wavelengthPattern matches the "<digits>nm.<ext>" suffix of measurement files,
// e.g. "RotBeamMap;142__2025_9_12_1-38-04__T5C__760nm.csv".
var wavelengthPattern = regexp.MustCompile(`(\d+)nm\.[^.]+$`)

// WavelengthFromFilename extracts the wavelength in nanometers encoded in a
// file name. It reports false when the name carries no wavelength.
func WavelengthFromFilename(name string) (int, bool) {
	m := wavelengthPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	nm, err := strconv.Atoi(m[1])
	if err != nil || nm <= 0 {
		return 0, false
	}
	return nm, true
}

// ReadMeasurement parses a measurement CSV with "angle" (degrees) and
// "current" columns. Samples are returned in file order; other columns are
// ignored.
func ReadMeasurement(r io.Reader) ([]models.Sample, error) {
	df, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	angles, err := floatColumn(df, ColumnAngle)
	if err != nil {
		return nil, err
	}
	currents, err := floatColumn(df, ColumnCurrent)
	if err != nil {
		return nil, err
	}

	samples := make([]models.Sample, len(angles))
	for i := range angles {
		samples[i] = models.Sample{Angle: angles[i], Current: currents[i]}
	}
	return samples, nil
}

// ReadMeasurementFile reads a measurement file and tags it with the
// wavelength from its name, or 0 if the name has none.
func ReadMeasurementFile(path string) (models.Measurement, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("error opening measurement file: %w", err)
	}
	defer f.Close()

	samples, err := ReadMeasurement(f)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("%s: %w", path, err)
	}
	nm, _ := WavelengthFromFilename(path)
	return models.Measurement{Samples: samples, WavelengthNM: nm, Source: path}, nil
}

// ReadIndexTable parses a refractive index CSV with "wl(um)" and "n" columns.
func ReadIndexTable(r io.Reader) (*material.Table, error) {
	df, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	wls, err := floatColumn(df, ColumnWavelength)
	if err != nil {
		return nil, err
	}
	ns, err := floatColumn(df, ColumnIndex)
	if err != nil {
		return nil, err
	}

	t, err := material.NewTable(wls, ns)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return t, nil
}

// LoadIndexTable reads an index table from a file.
func LoadIndexTable(path string) (*material.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening index table: %w", err)
	}
	defer f.Close()

	t, err := ReadIndexTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// LoadProvider loads one index table per material. files maps material names
// to file names relative to dataDir. Only the supported materials are
// accepted.
func LoadProvider(dataDir string, files map[string]string) (*material.Provider, error) {
	tables := make(map[string]*material.Table, len(files))
	for name, file := range files {
		if !material.Known(name) {
			return nil, fmt.Errorf("%w: %q", material.ErrUnknownMaterial, name)
		}
		path := file
		if !filepath.IsAbs(path) {
			path = filepath.Join(dataDir, file)
		}
		t, err := LoadIndexTable(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s index table: %w", name, err)
		}
		tables[name] = t
	}
	return material.NewProvider(tables), nil
}

func readFrame(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter(','),
		dataframe.HasHeader(true))
	if df.Err != nil {
		return df, fmt.Errorf("%w: %v", ErrMalformedInput, df.Err)
	}
	return df, nil
}

// floatColumn returns the named column as floats. Header names are matched
// after trimming surrounding whitespace. Empty or non-numeric cells are
// rejected.
func floatColumn(df dataframe.DataFrame, name string) ([]float64, error) {
	var col series.Series
	found := false
	for _, n := range df.Names() {
		if strings.TrimSpace(n) == name {
			col = df.Col(n)
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: missing column %q", ErrMalformedInput, name)
	}

	vals := col.Float()
	for i, v := range vals {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: column %q row %d is not a number", ErrMalformedInput, name, i+1)
		}
	}
	return vals, nil
}
