package fitting

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Fit is the best thickness found for one wavelength row.
type Fit struct {
	// Row is the row of the surface the fit belongs to
	Row int

	// Index is the thickness column of the minimum, or -1 if every cell in
	// the row is NaN
	Index int

	// Wavelength in microns
	Wavelength float64

	// Thickness in microns, NaN when Index is -1
	Thickness float64

	// Error is the sum of squared residuals at the minimum
	Error float64
}

// ErrorSurface holds squared-error values indexed by wavelength (rows) and
// thickness (columns). It is never modified after the sweep that built it.
type ErrorSurface struct {
	wavelengths []float64
	thicknesses []float64
	values      *mat.Dense
}

func newErrorSurface(wavelengths, thicknesses []float64) *ErrorSurface {
	return &ErrorSurface{
		wavelengths: append([]float64(nil), wavelengths...),
		thicknesses: append([]float64(nil), thicknesses...),
		values:      mat.NewDense(len(wavelengths), len(thicknesses), nil),
	}
}

// Dims returns the number of wavelength rows and thickness columns
func (s *ErrorSurface) Dims() (rows, cols int) {
	return s.values.Dims()
}

// At returns the error at wavelength row i and thickness column j
func (s *ErrorSurface) At(i, j int) float64 {
	return s.values.At(i, j)
}

// Row returns a copy of the error curve for wavelength row i
func (s *ErrorSurface) Row(i int) []float64 {
	return mat.Row(nil, i, s.values)
}

// Wavelengths returns a copy of the wavelength grid (microns)
func (s *ErrorSurface) Wavelengths() []float64 {
	return append([]float64(nil), s.wavelengths...)
}

// Thicknesses returns a copy of the thickness grid (microns)
func (s *ErrorSurface) Thicknesses() []float64 {
	return append([]float64(nil), s.thicknesses...)
}

// Matrix returns a read-only view of the underlying values
func (s *ErrorSurface) Matrix() mat.Matrix {
	return s.values
}

// BestFit returns the minimum of row i. Ties go to the smallest thickness and
// NaN cells are never selected.
func (s *ErrorSurface) BestFit(i int) Fit {
	idx := argmin(s.values.RawRowView(i))
	fit := Fit{
		Row:        i,
		Index:      idx,
		Wavelength: s.wavelengths[i],
		Thickness:  math.NaN(),
		Error:      math.NaN(),
	}
	if idx >= 0 {
		fit.Thickness = s.thicknesses[idx]
		fit.Error = s.values.At(i, idx)
	}
	return fit
}

// BestFits returns BestFit for every row in wavelength order
func (s *ErrorSurface) BestFits() []Fit {
	rows, _ := s.Dims()
	fits := make([]Fit, rows)
	for i := range fits {
		fits[i] = s.BestFit(i)
	}
	return fits
}

// Best returns the overall minimum across all rows, scanning rows in order
func (s *ErrorSurface) Best() Fit {
	best := Fit{Index: -1, Row: -1, Thickness: math.NaN(), Wavelength: math.NaN(), Error: math.NaN()}
	for _, f := range s.BestFits() {
		if f.Index < 0 {
			continue
		}
		if best.Index < 0 || f.Error < best.Error {
			best = f
		}
	}
	return best
}

// argmin returns the first index of the smallest non-NaN value, or -1
func argmin(v []float64) int {
	idx := -1
	for i, x := range v {
		if math.IsNaN(x) {
			continue
		}
		if idx < 0 || x < v[idx] {
			idx = i
		}
	}
	return idx
}
