// Package material provides refractive index lookup for the materials of the
// optical stack. Indices are tabulated against wavelength in microns and
// interpolated linearly between samples.
package material

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// Names of the materials the fitting model knows about.
const (
	Quartz  = "Quartz"
	Silicon = "Silicon"
)

var (
	// ErrUnknownMaterial is returned when a material has no index table.
	ErrUnknownMaterial = errors.New("material: unknown material")

	// ErrInvalidWavelength is returned for non-positive or non-finite query wavelengths.
	ErrInvalidWavelength = errors.New("material: wavelength must be positive")

	// ErrInvalidTable is returned when tabulated data violates the table invariants.
	ErrInvalidTable = errors.New("material: invalid index table")
)

// Table is an immutable (wavelength, index) table for one material.
//
// Lookups between samples are linear. Lookups outside the tabulated range
// return the index at the nearest edge of the table; the value is extended
// flatly, never extrapolated along the edge slope.
type Table struct {
	wavelengths []float64
	indices     []float64
	pl          interp.PiecewiseLinear
}

// NewTable builds a table from wavelengths (microns) and indices. Wavelengths
// must be positive and strictly increasing, indices non-negative, and at least
// two rows are required. The inputs are copied.
func NewTable(wavelengths, indices []float64) (*Table, error) {
	if len(wavelengths) != len(indices) {
		return nil, fmt.Errorf("%w: %d wavelengths but %d indices", ErrInvalidTable, len(wavelengths), len(indices))
	}
	if len(wavelengths) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 rows, got %d", ErrInvalidTable, len(wavelengths))
	}
	for i, wl := range wavelengths {
		if !(wl > 0) || math.IsInf(wl, 0) {
			return nil, fmt.Errorf("%w: row %d has wavelength %g", ErrInvalidTable, i, wl)
		}
		if i > 0 && wl <= wavelengths[i-1] {
			return nil, fmt.Errorf("%w: wavelengths not strictly increasing at row %d (%g after %g)",
				ErrInvalidTable, i, wl, wavelengths[i-1])
		}
		if !(indices[i] >= 0) || math.IsInf(indices[i], 0) {
			return nil, fmt.Errorf("%w: row %d has index %g", ErrInvalidTable, i, indices[i])
		}
	}

	t := &Table{
		wavelengths: append([]float64(nil), wavelengths...),
		indices:     append([]float64(nil), indices...),
	}
	if err := t.pl.Fit(t.wavelengths, t.indices); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return t, nil
}

// At returns the interpolated index at wavelength wl (microns).
func (t *Table) At(wl float64) float64 {
	return t.pl.Predict(wl)
}

// Len returns the number of rows in the table
func (t *Table) Len() int {
	return len(t.wavelengths)
}

// Range returns the smallest and largest tabulated wavelengths
func (t *Table) Range() (min, max float64) {
	return t.wavelengths[0], t.wavelengths[len(t.wavelengths)-1]
}

// Provider answers index queries for a fixed set of named materials. It is
// read-only after construction and safe for concurrent use.
type Provider struct {
	tables map[string]*Table
}

// NewProvider creates a provider over the given tables, keyed by material name.
func NewProvider(tables map[string]*Table) *Provider {
	p := &Provider{tables: make(map[string]*Table, len(tables))}
	for name, t := range tables {
		p.tables[name] = t
	}
	return p
}

// IndexAt returns the refractive index of the named material at wavelength
// (microns).
func (p *Provider) IndexAt(name string, wavelength float64) (float64, error) {
	if !(wavelength > 0) || math.IsInf(wavelength, 0) {
		return 0, fmt.Errorf("%w: %g um requested for %s", ErrInvalidWavelength, wavelength, name)
	}
	t, ok := p.tables[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMaterial, name)
	}
	return t.At(wavelength), nil
}

// Table returns the table registered for name.
func (p *Provider) Table(name string) (*Table, error) {
	t, ok := p.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMaterial, name)
	}
	return t, nil
}

// Materials lists the registered material names in sorted order
func (p *Provider) Materials() []string {
	names := make([]string, 0, len(p.tables))
	for name := range p.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is one of the materials the model supports.
func Known(name string) bool {
	return name == Quartz || name == Silicon
}
